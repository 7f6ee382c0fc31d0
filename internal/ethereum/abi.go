package ethereum

import (
	"io"
	"strings"
)

// Minimal ABIs: only the methods the venues call.

func erc20ABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "decimals",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint8"}]
		},
		{
			"name": "balanceOf",
			"type": "function",
			"stateMutability": "view",
			"inputs": [{"name": "_owner", "type": "address"}],
			"outputs": [{"name": "balance", "type": "uint256"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "_owner",   "type": "address"},
				{"name": "_spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "approve",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "_spender", "type": "address"},
				{"name": "_value",   "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`)
}

// Uniswap V2 Router02.
func v2RouterABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "getAmountsOut",
			"type": "function",
			"stateMutability": "view",
			"inputs": [
				{"name": "amountIn", "type": "uint256"},
				{"name": "path",     "type": "address[]"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		},
		{
			"name": "swapExactTokensForTokens",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "amountIn",      "type": "uint256"},
				{"name": "amountOutMin",  "type": "uint256"},
				{"name": "path",          "type": "address[]"},
				{"name": "to",            "type": "address"},
				{"name": "deadline",      "type": "uint256"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		},
		{
			"name": "swapExactTokensForETH",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{"name": "amountIn",      "type": "uint256"},
				{"name": "amountOutMin",  "type": "uint256"},
				{"name": "path",          "type": "address[]"},
				{"name": "to",            "type": "address"},
				{"name": "deadline",      "type": "uint256"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		},
		{
			"name": "swapExactETHForTokens",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{"name": "amountOutMin",  "type": "uint256"},
				{"name": "path",          "type": "address[]"},
				{"name": "to",            "type": "address"},
				{"name": "deadline",      "type": "uint256"}
			],
			"outputs": [{"name": "amounts", "type": "uint256[]"}]
		}
	]`)
}

// Uniswap V3 QuoterV2. quoteExactInputSingle is nonpayable but only ever
// invoked through eth_call.
func v3QuoterABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "quoteExactInputSingle",
			"type": "function",
			"stateMutability": "nonpayable",
			"inputs": [
				{
					"name": "params",
					"type": "tuple",
					"components": [
						{"name": "tokenIn",           "type": "address"},
						{"name": "tokenOut",          "type": "address"},
						{"name": "amountIn",          "type": "uint256"},
						{"name": "fee",               "type": "uint24"},
						{"name": "sqrtPriceLimitX96", "type": "uint160"}
					]
				}
			],
			"outputs": [
				{"name": "amountOut",               "type": "uint256"},
				{"name": "sqrtPriceX96After",       "type": "uint160"},
				{"name": "initializedTicksCrossed", "type": "uint32"},
				{"name": "gasEstimate",             "type": "uint256"}
			]
		}
	]`)
}

// Uniswap V3 SwapRouter.
func v3RouterABI() io.Reader {
	return strings.NewReader(`[
		{
			"name": "exactInputSingle",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{
					"name": "params",
					"type": "tuple",
					"components": [
						{"name": "tokenIn",           "type": "address"},
						{"name": "tokenOut",          "type": "address"},
						{"name": "fee",               "type": "uint24"},
						{"name": "recipient",         "type": "address"},
						{"name": "deadline",          "type": "uint256"},
						{"name": "amountIn",          "type": "uint256"},
						{"name": "amountOutMinimum",  "type": "uint256"},
						{"name": "sqrtPriceLimitX96", "type": "uint160"}
					]
				}
			],
			"outputs": [{"name": "amountOut", "type": "uint256"}]
		},
		{
			"name": "unwrapWETH9",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{"name": "amountMinimum", "type": "uint256"},
				{"name": "recipient",     "type": "address"}
			],
			"outputs": []
		},
		{
			"name": "multicall",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [{"name": "data", "type": "bytes[]"}],
			"outputs": [{"name": "results", "type": "bytes[]"}]
		}
	]`)
}
