package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/store"
)

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := s.store.ListStrategies(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	out := make([]StrategyResponse, 0, len(strategies))
	for i := range strategies {
		out = append(out, strategyResponse(&strategies[i]))
	}
	writeJSON(w, out)
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strat, err := s.store.GetStrategy(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, strategyResponse(strat))
}

func (s *Server) handleGetStrategyByName(w http.ResponseWriter, r *http.Request) {
	strat, err := s.store.GetStrategyByName(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, strategyResponse(strat))
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var payload StrategyPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateStrategyPayload(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.store.GetStrategyByName(r.Context(), payload.Name); err == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("strategy %q already exists", payload.Name))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		s.writeDomainError(w, err)
		return
	}
	strat := &domain.Strategy{
		Name:               payload.Name,
		Description:        payload.Description,
		Allocation:         payload.Allocation,
		RebalanceType:      domain.RebalanceType(payload.RebalanceType),
		RebalanceThreshold: payload.RebalanceThreshold,
	}
	if err := s.store.CreateStrategy(r.Context(), strat); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.log.Info("strategy created", "name", strat.Name, "id", strat.ID)
	writeJSON(w, strategyResponse(strat))
}

func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var payload StrategyPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateStrategyPayload(&payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strat, err := s.store.GetStrategy(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	strat.Name = payload.Name
	strat.Description = payload.Description
	strat.Allocation = payload.Allocation
	strat.RebalanceType = domain.RebalanceType(payload.RebalanceType)
	strat.RebalanceThreshold = payload.RebalanceThreshold
	if err := s.store.UpdateStrategy(r.Context(), strat); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, strategyResponse(strat))
}

func (s *Server) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.DeleteStrategy(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, MessageResponse{Message: "strategy deleted"})
}

func validateStrategyPayload(p *StrategyPayload) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !domain.ValidateAllocation(p.Allocation) {
		return fmt.Errorf("allocation weights must be non-negative and sum to 1")
	}
	if p.RebalanceType != "" && !domain.ValidRebalanceType(domain.RebalanceType(p.RebalanceType)) {
		return fmt.Errorf("unknown rebalance type %q", p.RebalanceType)
	}
	return nil
}
