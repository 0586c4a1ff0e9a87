// Package httpapi exposes the q-alpha REST API: asset and strategy
// management, market data retrieval, and backtest execution.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ccyingfu/q-alpha/internal/backtest"
	"github.com/ccyingfu/q-alpha/internal/fetch"
	"github.com/ccyingfu/q-alpha/internal/store"
)

// Server serves the q-alpha HTTP API.
type Server struct {
	store     *store.SQLiteStore
	engine    *backtest.Engine
	refresher *fetch.Refresher
	log       *slog.Logger

	// Background market-data refresh state.
	updateMu     sync.Mutex
	updateStatus UpdateStatus
}

// NewServer creates a Server wired to the given store, engine, and
// refresher.
func NewServer(s *store.SQLiteStore, engine *backtest.Engine, refresher *fetch.Refresher, log *slog.Logger) *Server {
	return &Server{
		store:     s,
		engine:    engine,
		refresher: refresher,
		log:       log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/assets", s.handleListAssets)
	mux.HandleFunc("GET /api/assets/{id}", s.handleGetAsset)
	mux.HandleFunc("GET /api/assets/code/{code}", s.handleGetAssetByCode)
	mux.HandleFunc("POST /api/assets", s.handleCreateAsset)
	mux.HandleFunc("PUT /api/assets/{id}", s.handleUpdateAsset)
	mux.HandleFunc("DELETE /api/assets/{id}", s.handleDeleteAsset)

	mux.HandleFunc("GET /api/strategies", s.handleListStrategies)
	mux.HandleFunc("GET /api/strategies/{id}", s.handleGetStrategy)
	mux.HandleFunc("GET /api/strategies/name/{name}", s.handleGetStrategyByName)
	mux.HandleFunc("POST /api/strategies", s.handleCreateStrategy)
	mux.HandleFunc("PUT /api/strategies/{id}", s.handleUpdateStrategy)
	mux.HandleFunc("DELETE /api/strategies/{id}", s.handleDeleteStrategy)

	mux.HandleFunc("GET /api/market/{code}/daily", s.handleMarketDaily)
	mux.HandleFunc("POST /api/market/update-all", s.handleUpdateAll)
	mux.HandleFunc("GET /api/market/update-status", s.handleUpdateStatus)

	mux.HandleFunc("POST /api/backtest/run", s.handleRunBacktest)
	mux.HandleFunc("GET /api/backtest/results", s.handleListResults)
	mux.HandleFunc("GET /api/backtest/results/{id}", s.handleGetResult)
	mux.HandleFunc("GET /api/backtest/results/{id}/chart", s.handleResultChart)
	mux.HandleFunc("DELETE /api/backtest/results/{id}", s.handleDeleteResult)
	mux.HandleFunc("POST /api/backtest/batch-delete", s.handleBatchDelete)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeDomainError maps storage, engine, and fetch errors to HTTP statuses:
// unknown records 404, degenerate backtest inputs 422, upstream
// connectivity 503, everything else 500.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound *backtest.AssetNotFoundError
		noDates  *backtest.NoTradingDatesError
		emptySer *backtest.EmptyPriceSeriesError
		connErr  *fetch.ConnError
		authErr  *fetch.AuthError
		noData   *fetch.NoDataError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &notFound), errors.As(err, &noData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &noDates), errors.As(err, &emptySer):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &connErr), errors.As(err, &authErr):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
