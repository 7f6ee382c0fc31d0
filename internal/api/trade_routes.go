package api

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/kjannette/trahn-swapgrid/internal/models"
)

type pnlResponse struct {
	Profit        *big.Int `json:"profit"`
	GasCosts      *big.Int `json:"gasCosts"`
	NetProfit     *big.Int `json:"netProfit"`
	Trades        int      `json:"trades"`
	TotalInvested *big.Int `json:"totalInvested"`
}

// parseTradeSource extracts the ?source= query parameter.
// "memory" (default) reads the in-process ledger, "journal" reads Postgres.
func parseTradeSource(r *http.Request) (string, error) {
	v := r.URL.Query().Get("source")
	switch v {
	case "", "memory":
		return "memory", nil
	case "journal":
		return v, nil
	default:
		return "", fmt.Errorf("invalid source %q, expected memory|journal", v)
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)

	source, err := parseTradeSource(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if source == "memory" {
		writeJSON(w, http.StatusOK, nonNil(s.grid.Ledger().Recent(limit)))
		return
	}

	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, "trade journal not configured")
		return
	}
	trades, err := s.journal.GetRecent(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("fetch journaled trades")
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(trades))
}

func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	book := s.grid.Ledger()
	pnl := book.GetTotalPnL()
	writeJSON(w, http.StatusOK, pnlResponse{
		Profit:        pnl.Profit,
		GasCosts:      pnl.GasCosts,
		NetProfit:     pnl.NetProfit,
		Trades:        pnl.Trades,
		TotalInvested: book.TotalInvested(),
	})
}

func nonNil(trades []models.TradeRecord) []models.TradeRecord {
	if trades == nil {
		return []models.TradeRecord{}
	}
	return trades
}
