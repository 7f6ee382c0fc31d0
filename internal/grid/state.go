package grid

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kjannette/trahn-swapgrid/internal/ledger"
	"github.com/kjannette/trahn-swapgrid/internal/models"
)

// Every mutation of GridBotState goes through the functions below. Callers
// hold the scheduler's lock.

// applyFill marks a level filled by tx at t.
func applyFill(level *models.GridLevel, tx common.Hash, t time.Time) {
	h := tx
	at := t
	level.Filled = true
	level.LastTxHash = &h
	level.FilledAt = &at
	if level.Side == models.SideBuy {
		level.OpenBuy = true
	}
}

// flipLevel switches the level's role and re-arms it.
func flipLevel(level *models.GridLevel) {
	level.Side = level.Side.Opposite()
	level.Filled = false
}

// matchBuy closes one open buy for a sell fill at idx: the nearest one below
// it when there is one, otherwise the level's own. It reports whether a lower
// buy was matched, which is what makes the sell profitable.
func matchBuy(levels []models.GridLevel, idx int) bool {
	price := levels[idx].Price
	for j := idx - 1; j >= 0; j-- {
		if levels[j].OpenBuy && levels[j].Price < price {
			levels[j].OpenBuy = false
			return true
		}
	}
	levels[idx].OpenBuy = false
	return false
}

// sellProfit is the quoted proceeds of a sell less the level's allocation.
func sellProfit(amountOut, allocated *big.Int) *big.Int {
	return new(big.Int).Sub(amountOut, allocated)
}

// recordTrade appends rec to the ledger and refreshes the state totals.
func recordTrade(state *models.GridBotState, book *ledger.Ledger, rec models.TradeRecord) {
	book.Record(rec)
	state.TradesExecuted++
	state.TotalProfit = book.TotalProfit()
	state.TotalInvested = book.TotalInvested()
}

// snapshot deep-copies state for publication, attaching the trade history.
func snapshot(state *models.GridBotState, book *ledger.Ledger) *models.GridBotState {
	cp := *state
	cp.Levels = make([]models.GridLevel, len(state.Levels))
	copy(cp.Levels, state.Levels)
	cp.TotalProfit = new(big.Int).Set(state.TotalProfit)
	cp.TotalInvested = new(big.Int).Set(state.TotalInvested)
	cp.Trades = book.Trades()
	return &cp
}
