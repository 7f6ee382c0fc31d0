package swap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FeeTier is a concentrated-liquidity pool fee in hundredths of a basis point
// (500 = 0.05%).
type FeeTier uint32

const (
	FeeNone FeeTier = 0
	FeeLow  FeeTier = 500
	FeeMid  FeeTier = 3000
	FeeHigh FeeTier = 10000
)

// DefaultFeeTiers is the probe order used by the quote engine.
var DefaultFeeTiers = []FeeTier{FeeLow, FeeMid, FeeHigh}

func (f FeeTier) String() string {
	if f == FeeNone {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", float64(f)/10000)
}

func (f FeeTier) Label() string {
	switch f {
	case FeeLow:
		return "low"
	case FeeMid:
		return "mid"
	case FeeHigh:
		return "high"
	default:
		return "none"
	}
}

type VenueKind int

const (
	// VenueConstantProduct routers quote along a token path and have no fee tiers.
	VenueConstantProduct VenueKind = iota
	// VenueConcentrated routers expose one pool per discrete fee tier.
	VenueConcentrated
)

func (k VenueKind) String() string {
	if k == VenueConcentrated {
		return "concentrated"
	}
	return "constant-product"
}

// PlaceholderPriceImpact is reported on every quote; impact is not derived
// from pool reserves.
const PlaceholderPriceImpact = 0.1

type SwapQuote struct {
	AmountOut           *big.Int
	Route               []common.Address
	PoolFeeTier         FeeTier
	PriceImpactEstimate float64
}

type SwapResult struct {
	TxHash            common.Hash
	AmountIn          *big.Int
	AmountOut         *big.Int // pre-trade quote, not the settled amount
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// GasCost returns gasUsed * effectiveGasPrice in wei.
func (r *SwapResult) GasCost() *big.Int {
	if r == nil || r.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasUsed), r.EffectiveGasPrice)
}

// SwapCall is everything a router needs to build the swap transaction.
type SwapCall struct {
	Route        []common.Address
	Fee          FeeTier
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Recipient    common.Address
	Deadline     time.Time
	NativeIn     bool
	NativeOut    bool
}

// Router is the AMM venue: read-only quoting plus swap submission.
type Router interface {
	Address() common.Address
	Kind() VenueKind
	// QuotePath returns the pool-implied output at the end of path.
	QuotePath(ctx context.Context, path []common.Address, amountIn *big.Int) (*big.Int, error)
	// QuoteSingle simulates a single-pool swap in the given fee tier.
	QuoteSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee FeeTier, amountIn *big.Int) (*big.Int, error)
	// Swap signs and broadcasts the swap; it does not wait for inclusion.
	Swap(ctx context.Context, call SwapCall) (common.Hash, error)
}

// Chain is the token and transaction surface the swap layer consumes.
type Chain interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	WaitReceipt(ctx context.Context, tx common.Hash) (*types.Receipt, error)
}
