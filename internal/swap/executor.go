package swap

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const (
	MaxSlippageBps  = 10000
	DefaultDeadline = 20 * time.Minute
)

type SwapRequest struct {
	TokenIn     common.Address
	TokenOut    common.Address
	AmountIn    *big.Int
	SlippageBps uint32
	Recipient   common.Address // zero means the executor's own wallet
}

type ExecutorOptions struct {
	Owner    common.Address
	Deadline time.Duration
	Now      func() time.Time
	Log      logrus.FieldLogger
}

// Executor submits slippage-protected swaps and blocks until they are mined.
type Executor struct {
	quotes    *QuoteEngine
	approvals *ApprovalManager
	router    Router
	chain     Chain
	owner     common.Address
	deadline  time.Duration
	now       func() time.Time
	log       logrus.FieldLogger
}

func NewExecutor(quotes *QuoteEngine, approvals *ApprovalManager, router Router, chain Chain, opts ExecutorOptions) *Executor {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Executor{
		quotes:    quotes,
		approvals: approvals,
		router:    router,
		chain:     chain,
		owner:     opts.Owner,
		deadline:  opts.Deadline,
		now:       opts.Now,
		log:       opts.Log.WithField("component", "swap"),
	}
}

func (e *Executor) Quotes() *QuoteEngine { return e.quotes }

// AmountOutMin returns floor(quoted * (10000 - slippageBps) / 10000).
func AmountOutMin(quoted *big.Int, slippageBps uint32) *big.Int {
	if quoted == nil || slippageBps >= MaxSlippageBps {
		return new(big.Int)
	}
	out := new(big.Int).Mul(quoted, big.NewInt(int64(MaxSlippageBps-slippageBps)))
	return out.Quo(out, big.NewInt(MaxSlippageBps))
}

// SlippageFromPercent converts a percentage such as 0.5 into basis points.
func SlippageFromPercent(pct float64) (uint32, error) {
	if pct < 0 || pct > 100 || math.IsNaN(pct) {
		return 0, fmt.Errorf("%w: %.4f%%", ErrInvalidSlippage, pct)
	}
	return uint32(math.Round(pct * 100)), nil
}

// ExecuteSwap swaps an exact amount of one ERC-20 for another.
func (e *Executor) ExecuteSwap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	return e.execute(ctx, req, false, false)
}

// SwapNativeForTokens spends the chain's native coin, sent as transaction
// value, routed through the wrapped-native token.
func (e *Executor) SwapNativeForTokens(ctx context.Context, tokenOut common.Address, amountIn *big.Int, slippageBps uint32, recipient common.Address) (*SwapResult, error) {
	return e.execute(ctx, SwapRequest{
		TokenIn:     e.quotes.Reference(),
		TokenOut:    tokenOut,
		AmountIn:    amountIn,
		SlippageBps: slippageBps,
		Recipient:   recipient,
	}, true, false)
}

// SwapTokensForNative sells an ERC-20 and delivers unwrapped native coin.
func (e *Executor) SwapTokensForNative(ctx context.Context, tokenIn common.Address, amountIn *big.Int, slippageBps uint32, recipient common.Address) (*SwapResult, error) {
	return e.execute(ctx, SwapRequest{
		TokenIn:     tokenIn,
		TokenOut:    e.quotes.Reference(),
		AmountIn:    amountIn,
		SlippageBps: slippageBps,
		Recipient:   recipient,
	}, false, true)
}

func (e *Executor) execute(ctx context.Context, req SwapRequest, nativeIn, nativeOut bool) (*SwapResult, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.SlippageBps > MaxSlippageBps {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSlippage, req.SlippageBps)
	}
	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = e.owner
	}

	quote, err := e.quotes.GetQuote(ctx, req.TokenIn, req.TokenOut, req.AmountIn)
	if err != nil {
		return nil, err
	}
	minOut := AmountOutMin(quote.AmountOut, req.SlippageBps)
	deadline := e.now().Add(e.deadline)

	if !nativeIn {
		if _, err := e.approvals.EnsureApproval(ctx, req.TokenIn, req.AmountIn, e.owner); err != nil {
			return nil, err
		}
	}

	entry := e.log.WithFields(logrus.Fields{
		"tokenIn":      req.TokenIn.Hex(),
		"tokenOut":     req.TokenOut.Hex(),
		"amountIn":     req.AmountIn.String(),
		"quotedOut":    quote.AmountOut.String(),
		"amountOutMin": minOut.String(),
		"tier":         quote.PoolFeeTier.String(),
	})
	entry.Info("submitting swap")

	hash, err := e.router.Swap(ctx, SwapCall{
		Route:        quote.Route,
		Fee:          quote.PoolFeeTier,
		AmountIn:     new(big.Int).Set(req.AmountIn),
		AmountOutMin: minOut,
		Recipient:    recipient,
		Deadline:     deadline,
		NativeIn:     nativeIn,
		NativeOut:    nativeOut,
	})
	if err != nil {
		return nil, fmt.Errorf("submit swap: %w", err)
	}

	receipt, err := e.chain.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("wait swap %s: %w", hash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &SwapFailedError{TxHash: hash, AmountOutMin: minOut}
	}

	res := &SwapResult{
		TxHash:            hash,
		AmountIn:          new(big.Int).Set(req.AmountIn),
		AmountOut:         quote.AmountOut,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
	}
	entry.WithFields(logrus.Fields{"tx": hash.Hex(), "gasUsed": receipt.GasUsed}).Info("swap confirmed")
	return res, nil
}
