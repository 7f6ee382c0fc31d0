package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// QuoteEngine discovers a route for a trade on the configured router.
type QuoteEngine struct {
	router    Router
	reference common.Address
	tiers     []FeeTier
	log       logrus.FieldLogger
}

// NewQuoteEngine builds a quote engine. reference is the wrapped-native token
// used as the intermediate hop on constant-product venues. With no tiers the
// DefaultFeeTiers order is used.
func NewQuoteEngine(router Router, reference common.Address, tiers []FeeTier, log logrus.FieldLogger) *QuoteEngine {
	if len(tiers) == 0 {
		tiers = DefaultFeeTiers
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &QuoteEngine{
		router:    router,
		reference: reference,
		tiers:     append([]FeeTier(nil), tiers...),
		log:       log.WithField("component", "quote"),
	}
}

func (q *QuoteEngine) Reference() common.Address { return q.reference }

// GetQuote returns the output for amountIn of tokenIn. On concentrated
// venues the first tier, in declared order, with a positive simulated output
// wins even if a later tier would pay more.
func (q *QuoteEngine) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*SwapQuote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if q.router.Kind() == VenueConcentrated {
		return q.quoteTiers(ctx, tokenIn, tokenOut, amountIn)
	}
	return q.quotePath(ctx, tokenIn, tokenOut, amountIn)
}

// Path returns the fixed constant-product route: direct when either side is
// the reference asset, otherwise through it.
func (q *QuoteEngine) Path(tokenIn, tokenOut common.Address) []common.Address {
	if tokenIn == q.reference || tokenOut == q.reference {
		return []common.Address{tokenIn, tokenOut}
	}
	return []common.Address{tokenIn, q.reference, tokenOut}
}

func (q *QuoteEngine) quotePath(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*SwapQuote, error) {
	path := q.Path(tokenIn, tokenOut)
	out, err := q.router.QuotePath(ctx, path, amountIn)
	if err != nil {
		if !IsRevert(err) {
			return nil, fmt.Errorf("quote path: %w", err)
		}
		return nil, &NoLiquidityError{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, Cause: err}
	}
	if out == nil || out.Sign() <= 0 {
		return nil, &NoLiquidityError{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn}
	}
	q.log.WithFields(logrus.Fields{"hops": len(path) - 1, "amountOut": out.String()}).Debug("path quote")
	return &SwapQuote{
		AmountOut:           out,
		Route:               path,
		PoolFeeTier:         FeeNone,
		PriceImpactEstimate: PlaceholderPriceImpact,
	}, nil
}

func (q *QuoteEngine) quoteTiers(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*SwapQuote, error) {
	var lastErr error
	for _, tier := range q.tiers {
		out, err := q.router.QuoteSingle(ctx, tokenIn, tokenOut, tier, amountIn)
		if err != nil {
			if !IsRevert(err) {
				return nil, fmt.Errorf("quote %s tier: %w", tier, err)
			}
			// a missing pool reverts the quoter call
			q.log.WithError(err).WithField("tier", tier.String()).Debug("fee tier probe reverted")
			lastErr = err
			continue
		}
		if out == nil || out.Sign() <= 0 {
			continue
		}
		q.log.WithFields(logrus.Fields{"tier": tier.String(), "amountOut": out.String()}).Debug("fee tier selected")
		return &SwapQuote{
			AmountOut:           out,
			Route:               []common.Address{tokenIn, tokenOut},
			PoolFeeTier:         tier,
			PriceImpactEstimate: PlaceholderPriceImpact,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &NoLiquidityError{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, Cause: lastErr}
}
