package risk

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrTradeBlocked   = errors.New("trade blocked")
	ErrBreakerTripped = errors.New("circuit breaker tripped")
)

// DailyTradeCounter abstracts the trade-counting dependency so Guardian
// can be tested without a ledger or database.
type DailyTradeCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the risk thresholds from config. A zero (or nil) value for
// any field disables that check.
type Limits struct {
	MaxDailyTrades int
	// MaxTradeAmount is in raw quote-token units.
	MaxTradeAmount    *big.Int
	StopLossPercent   float64
	TakeProfitPercent float64
}

func (l Limits) Enabled() bool {
	return l.MaxDailyTrades > 0 || (l.MaxTradeAmount != nil && l.MaxTradeAmount.Sign() > 0) ||
		l.StopLossPercent > 0 || l.TakeProfitPercent > 0
}

type Guardian struct {
	limits  Limits
	counter DailyTradeCounter
}

func NewGuardian(limits Limits, counter DailyTradeCounter) *Guardian {
	return &Guardian{limits: limits, counter: counter}
}

// PreTradeCheck validates per-trade constraints before execution.
// Returns nil if the trade is allowed, an error wrapping ErrTradeBlocked if not.
func (g *Guardian) PreTradeCheck(ctx context.Context, tradeValue *big.Int) error {
	if limit := g.limits.MaxTradeAmount; limit != nil && limit.Sign() > 0 && tradeValue != nil && tradeValue.Cmp(limit) > 0 {
		return fmt.Errorf("%w: amount %s exceeds max %s", ErrTradeBlocked, tradeValue, limit)
	}

	if g.limits.MaxDailyTrades > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("%w: unable to verify daily trade count: %w", ErrTradeBlocked, err)
		}
		if count >= g.limits.MaxDailyTrades {
			return fmt.Errorf("%w: daily limit of %d trades reached (%d executed today)",
				ErrTradeBlocked, g.limits.MaxDailyTrades, count)
		}
	}

	return nil
}

// PortfolioCheck evaluates portfolio-level circuit breakers.
// pnlPercent is realized P&L as a percentage (e.g. -8.5 means down 8.5%).
func (g *Guardian) PortfolioCheck(pnlPercent float64) error {
	if g.limits.StopLossPercent > 0 && pnlPercent <= -g.limits.StopLossPercent {
		return fmt.Errorf("%w: STOP-LOSS at %.2f%% (threshold: -%.2f%%)",
			ErrBreakerTripped, pnlPercent, g.limits.StopLossPercent)
	}

	if g.limits.TakeProfitPercent > 0 && pnlPercent >= g.limits.TakeProfitPercent {
		return fmt.Errorf("%w: TAKE-PROFIT at %.2f%% (threshold: +%.2f%%)",
			ErrBreakerTripped, pnlPercent, g.limits.TakeProfitPercent)
	}

	return nil
}
