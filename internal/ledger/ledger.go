// Package ledger accumulates executed trades and derives profit and gas totals.
package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/kjannette/trahn-swapgrid/internal/models"
)

type PnL struct {
	Profit    *big.Int `json:"profit"`
	Trades    int      `json:"trades"`
	GasCosts  *big.Int `json:"gasCosts"`
	NetProfit *big.Int `json:"netProfit"`
}

// Ledger is append-only. Profit is denominated in raw quote-token units and
// gas in wei, so NetProfit is only meaningful when both share a unit (e.g.
// the quote token is the wrapped native coin); callers displaying it for
// other pairs should convert first.
type Ledger struct {
	mu       sync.RWMutex
	trades   []models.TradeRecord
	profit   *big.Int
	invested *big.Int
	gas      *big.Int
	now      func() time.Time
}

func New() *Ledger {
	return &Ledger{
		profit:   new(big.Int),
		invested: new(big.Int),
		gas:      new(big.Int),
		now:      time.Now,
	}
}

// Record appends a trade. Buy amounts count toward total invested; a
// non-nil Profit is added to the running total.
func (l *Ledger) Record(rec models.TradeRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.trades = append(l.trades, rec)
	if rec.GasCost != nil {
		l.gas.Add(l.gas, rec.GasCost)
	}
	if rec.Profit != nil {
		l.profit.Add(l.profit, rec.Profit)
	}
	if rec.Side == models.SideBuy && rec.AmountIn != nil {
		l.invested.Add(l.invested, rec.AmountIn)
	}
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}

// Trades returns a copy of all records, oldest first.
func (l *Ledger) Trades() []models.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(limit int) []models.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.trades) {
		limit = len(l.trades)
	}
	out := make([]models.TradeRecord, 0, limit)
	for i := len(l.trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.trades[i])
	}
	return out
}

func (l *Ledger) TotalProfit() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.profit)
}

func (l *Ledger) TotalInvested() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.invested)
}

func (l *Ledger) GetTotalPnL() PnL {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return PnL{
		Profit:    new(big.Int).Set(l.profit),
		Trades:    len(l.trades),
		GasCosts:  new(big.Int).Set(l.gas),
		NetProfit: new(big.Int).Sub(l.profit, l.gas),
	}
}

// CountToday counts trades in the current trading day.
func (l *Ledger) CountToday(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	today := TradingDay(l.now())
	count := 0
	for i := len(l.trades) - 1; i >= 0; i-- {
		if TradingDay(l.trades[i].Time) != today {
			break
		}
		count++
	}
	return count, nil
}
