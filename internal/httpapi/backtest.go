package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ccyingfu/q-alpha/internal/chart"
)

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	if !req.StartDate.Before(req.EndDate) {
		writeError(w, http.StatusBadRequest, "start_date must precede end_date")
		return
	}
	if req.InitialCapital <= 0 {
		writeError(w, http.StatusBadRequest, "initial_capital must be positive")
		return
	}

	strat, err := s.store.GetStrategy(r.Context(), req.StrategyID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	// Pull fresh market data for every allocated asset before simulating.
	for code := range strat.Allocation {
		if err := s.refresher.EnsureData(r.Context(), code, req.StartDate, req.EndDate); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}

	result, err := s.engine.Run(r.Context(), strat, req.StartDate, req.EndDate, req.InitialCapital)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.store.SaveResult(r.Context(), result); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.log.Info("backtest complete",
		"strategy", strat.Name,
		"result_id", result.ID,
		"total_return", result.Metrics.TotalReturn)
	writeJSON(w, backtestResponse(result, strat.Name))
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	var strategyID int64
	if v := r.URL.Query().Get("strategy_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid strategy_id %q", v))
			return
		}
		strategyID = id
	}
	results, err := s.store.ListResults(r.Context(), strategyID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]BacktestResponse, 0, len(results))
	for i := range results {
		out = append(out, backtestResponse(&results[i], s.strategyName(r.Context(), results[i].StrategyID)))
	}
	writeJSON(w, out)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, backtestResponse(result, s.strategyName(r.Context(), result.StrategyID)))
}

func (s *Server) handleResultChart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	png, err := chart.Render(result, s.strategyName(r.Context(), result.StrategyID))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteResult(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, MessageResponse{Message: "result deleted"})
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}
	deleted, err := s.store.DeleteResults(r.Context(), req.IDs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, BatchDeleteResponse{
		Message:      fmt.Sprintf("Deleted %d results", deleted),
		DeletedCount: deleted,
	})
}

// strategyName resolves a strategy ID for display. A failed lookup degrades
// to a placeholder rather than failing the whole response.
func (s *Server) strategyName(ctx context.Context, id int64) string {
	strat, err := s.store.GetStrategy(ctx, id)
	if err != nil {
		return "Unknown"
	}
	return strat.Name
}
