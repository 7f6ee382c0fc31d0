package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// UniswapV3 is a concentrated-liquidity venue: QuoterV2 for simulation and
// SwapRouter for execution. Only single-pool routes are supported.
type UniswapV3 struct {
	backend   ContractBackend
	router    common.Address
	quoter    common.Address
	routerABI abi.ABI
	quoterABI abi.ABI
}

func NewUniswapV3(backend ContractBackend, router, quoter common.Address) (*UniswapV3, error) {
	rABI, err := abi.JSON(v3RouterABI())
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}
	qABI, err := abi.JSON(v3QuoterABI())
	if err != nil {
		return nil, fmt.Errorf("parse quoter ABI: %w", err)
	}
	return &UniswapV3{backend: backend, router: router, quoter: quoter, routerABI: rABI, quoterABI: qABI}, nil
}

func (u *UniswapV3) Address() common.Address { return u.router }
func (u *UniswapV3) Kind() swap.VenueKind    { return swap.VenueConcentrated }

func (u *UniswapV3) QuotePath(context.Context, []common.Address, *big.Int) (*big.Int, error) {
	return nil, fmt.Errorf("path quotes are not supported on a concentrated venue")
}

// QuoteSingle simulates an exact-input swap in the pool for fee. A missing
// pool surfaces as a reverted call.
func (u *UniswapV3) QuoteSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee swap.FeeTier, amountIn *big.Int) (*big.Int, error) {
	data, err := u.quoterABI.Pack("quoteExactInputSingle", quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(fee)),
		SqrtPriceLimitX96: new(big.Int),
	})
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInputSingle: %w", err)
	}
	raw, err := u.backend.CallContract(ctx, u.quoter, data)
	if err != nil {
		return nil, fmt.Errorf("quoteExactInputSingle(%s): %w", fee, err)
	}
	out, err := u.quoterABI.Unpack("quoteExactInputSingle", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack quoteExactInputSingle: %w", err)
	}
	amountOut, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("quoteExactInputSingle: unexpected type %T", out[0])
	}
	return amountOut, nil
}

// Swap submits exactInputSingle. Native input is sent as value; native
// output is delivered to the router and unwrapped to the recipient inside
// one multicall.
func (u *UniswapV3) Swap(ctx context.Context, call swap.SwapCall) (common.Hash, error) {
	if len(call.Route) != 2 {
		return common.Hash{}, fmt.Errorf("concentrated venue needs a single-pool route, got %d tokens", len(call.Route))
	}
	params := exactInputSingleParams{
		TokenIn:           call.Route[0],
		TokenOut:          call.Route[1],
		Fee:               big.NewInt(int64(call.Fee)),
		Recipient:         call.Recipient,
		Deadline:          big.NewInt(call.Deadline.Unix()),
		AmountIn:          call.AmountIn,
		AmountOutMinimum:  call.AmountOutMin,
		SqrtPriceLimitX96: new(big.Int),
	}

	var value *big.Int
	if call.NativeIn {
		value = call.AmountIn
	}

	if !call.NativeOut {
		data, err := u.routerABI.Pack("exactInputSingle", params)
		if err != nil {
			return common.Hash{}, fmt.Errorf("pack exactInputSingle: %w", err)
		}
		return u.backend.SendTx(ctx, u.router, value, data)
	}

	params.Recipient = u.router
	swapData, err := u.routerABI.Pack("exactInputSingle", params)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	unwrapData, err := u.routerABI.Pack("unwrapWETH9", call.AmountOutMin, call.Recipient)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack unwrapWETH9: %w", err)
	}
	data, err := u.routerABI.Pack("multicall", [][]byte{swapData, unwrapData})
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack multicall: %w", err)
	}
	return u.backend.SendTx(ctx, u.router, value, data)
}
