package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Database string `json:"database"`
	Grid     string `json:"grid"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disabled"
	if s.database != nil {
		dbStatus = "connected"
		if err := s.database.Ping(r.Context()); err != nil {
			dbStatus = "disconnected"
		}
	}

	gridStatus := "uninitialized"
	if snap := s.grid.Snapshot(); snap != nil {
		gridStatus = "stopped"
		if snap.Running {
			gridStatus = "running"
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Services:  healthServices{Database: dbStatus, Grid: gridStatus},
	})
}
