package swap

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNoLiquidity     = errors.New("no liquidity")
	ErrApprovalFailed  = errors.New("approval failed")
	ErrSwapFailed      = errors.New("swap failed")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidSlippage = errors.New("slippage must be between 0 and 10000 bps")

	// ErrReverted marks a quote call the venue rejected, such as a missing
	// pool or insufficient reserves.
	ErrReverted = errors.New("execution reverted")
)

// IsRevert reports whether err is a venue rejection rather than a transport
// failure. JSON-RPC error responses count as rejections.
func IsRevert(err error) bool {
	if errors.Is(err, ErrReverted) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// NoLiquidityError means no fee tier or path produced a positive quote.
type NoLiquidityError struct {
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	Cause    error
}

func (e *NoLiquidityError) Error() string {
	msg := fmt.Sprintf("no liquidity for %s -> %s (amountIn %s)", e.TokenIn.Hex(), e.TokenOut.Hex(), e.AmountIn)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NoLiquidityError) Is(target error) bool { return target == ErrNoLiquidity }
func (e *NoLiquidityError) Unwrap() error        { return e.Cause }

// ApprovalFailedError means the approval transaction was mined with a failure status.
type ApprovalFailedError struct {
	Token  common.Address
	TxHash common.Hash
}

func (e *ApprovalFailedError) Error() string {
	return fmt.Sprintf("approval of %s reverted (tx %s)", e.Token.Hex(), e.TxHash.Hex())
}

func (e *ApprovalFailedError) Is(target error) bool { return target == ErrApprovalFailed }

// SwapFailedError means the swap transaction was mined with a failure status,
// typically because amountOutMin or the deadline was violated.
type SwapFailedError struct {
	TxHash       common.Hash
	AmountOutMin *big.Int
}

func (e *SwapFailedError) Error() string {
	return fmt.Sprintf("swap reverted (tx %s, amountOutMin %s)", e.TxHash.Hex(), e.AmountOutMin)
}

func (e *SwapFailedError) Is(target error) bool { return target == ErrSwapFailed }
