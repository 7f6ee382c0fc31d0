package api

import (
	"net/http"

	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/kjannette/trahn-swapgrid/internal/models"
)

type gridCurrentResponse struct {
	Initialized bool                 `json:"initialized"`
	State       *models.GridBotState `json:"state,omitempty"`
	Stats       *grid.GridStats      `json:"stats,omitempty"`
	LastUpdate  *string              `json:"lastUpdate,omitempty"`
}

func (s *Server) handleGridCurrent(w http.ResponseWriter, r *http.Request) {
	state := s.grid.Snapshot()
	if state == nil {
		writeJSON(w, http.StatusOK, gridCurrentResponse{})
		return
	}

	stats := grid.GetGridStats(state.Levels)
	resp := gridCurrentResponse{
		Initialized: true,
		State:       state,
		Stats:       &stats,
	}
	if !state.LastCheckTime.IsZero() {
		ts := state.LastCheckTime.UTC().Format("2006-01-02T15:04:05.000Z")
		resp.LastUpdate = &ts
	}
	writeJSON(w, http.StatusOK, resp)
}
