package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kjannette/trahn-swapgrid/internal/grid"
	"github.com/kjannette/trahn-swapgrid/internal/ledger"
	"github.com/kjannette/trahn-swapgrid/internal/models"
)

const maxQueryLimit = 1000

// GridSource is the read side of the grid scheduler.
type GridSource interface {
	Snapshot() *models.GridBotState
	Ledger() *ledger.Ledger
	Subscribe(buffer int) (<-chan grid.Event, func())
}

// TradeLister reads journaled trades, newest first.
type TradeLister interface {
	GetRecent(ctx context.Context, limit int) ([]models.TradeRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig wires the status API. Journal and Database are optional;
// leave them nil when Postgres is not configured.
type ServerConfig struct {
	Port       int
	APIKey     string
	CORSOrigin string
	Grid       GridSource
	Journal    TradeLister
	Database   Pinger
	Log        logrus.FieldLogger
}

type Server struct {
	grid       GridSource
	journal    TradeLister
	database   Pinger
	httpServer *http.Server
	apiKey     string
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewServer(cfg ServerConfig) *Server {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		grid:     cfg.Grid,
		journal:  cfg.Journal,
		database: cfg.Database,
		apiKey:   cfg.APIKey,
		log:      log.WithField("component", "api"),
		now:      time.Now,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.routes(cfg.CORSOrigin),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) routes(corsOrigin string) http.Handler {
	mux := http.NewServeMux()

	// Grid routes
	mux.HandleFunc("GET /v1/grid/current", s.handleGridCurrent)

	// Trade routes
	mux.HandleFunc("GET /v1/trades", s.handleTrades)
	mux.HandleFunc("GET /v1/pnl", s.handlePnL)

	// Event stream
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.authMiddleware(corsMiddleware(mux, corsOrigin))
}

// Start serves until Shutdown; it returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.WithFields(logrus.Fields{
		"addr": s.httpServer.Addr,
		"auth": s.apiKey != "",
	}).Info("status API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
