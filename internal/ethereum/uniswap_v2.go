package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/kjannette/trahn-swapgrid/internal/swap"
)

const explorerTxPrefix = "https://etherscan.io/tx/"

func ExplorerURL(hash common.Hash) string {
	return explorerTxPrefix + hash.Hex()
}

// ContractBackend is what a router needs from the chain: reads and signed sends.
type ContractBackend interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendTx(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

var errNoFeeTiers = errors.New("venue has no fee tiers")

// UniswapV2 is a constant-product router (Router02).
type UniswapV2 struct {
	backend   ContractBackend
	router    common.Address
	routerABI abi.ABI
}

func NewUniswapV2(backend ContractBackend, router common.Address) (*UniswapV2, error) {
	rABI, err := abi.JSON(v2RouterABI())
	if err != nil {
		return nil, fmt.Errorf("parse router ABI: %w", err)
	}
	return &UniswapV2{backend: backend, router: router, routerABI: rABI}, nil
}

func (u *UniswapV2) Address() common.Address { return u.router }
func (u *UniswapV2) Kind() swap.VenueKind    { return swap.VenueConstantProduct }

// QuotePath returns the last element of getAmountsOut(amountIn, path).
func (u *UniswapV2) QuotePath(ctx context.Context, path []common.Address, amountIn *big.Int) (*big.Int, error) {
	data, err := u.routerABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := u.backend.CallContract(ctx, u.router, data)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut call: %w", err)
	}
	out, err := u.routerABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("getAmountsOut: unexpected result %v", out)
	}
	return amounts[len(amounts)-1], nil
}

func (u *UniswapV2) QuoteSingle(context.Context, common.Address, common.Address, swap.FeeTier, *big.Int) (*big.Int, error) {
	return nil, errNoFeeTiers
}

// Swap submits swapExactETHForTokens, swapExactTokensForETH or
// swapExactTokensForTokens depending on which end is native.
func (u *UniswapV2) Swap(ctx context.Context, call swap.SwapCall) (common.Hash, error) {
	deadline := big.NewInt(call.Deadline.Unix())

	var (
		data  []byte
		value *big.Int
		err   error
	)
	switch {
	case call.NativeIn:
		data, err = u.routerABI.Pack("swapExactETHForTokens",
			call.AmountOutMin, call.Route, call.Recipient, deadline)
		value = call.AmountIn
	case call.NativeOut:
		data, err = u.routerABI.Pack("swapExactTokensForETH",
			call.AmountIn, call.AmountOutMin, call.Route, call.Recipient, deadline)
	default:
		data, err = u.routerABI.Pack("swapExactTokensForTokens",
			call.AmountIn, call.AmountOutMin, call.Route, call.Recipient, deadline)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack swap: %w", err)
	}
	return u.backend.SendTx(ctx, u.router, value, data)
}
