package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

func (s *Server) handleMarketDaily(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	asset, err := s.store.GetAssetByCode(r.Context(), code)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	start := domain.DateOf(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	end := domain.DateOf(time.Now())
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = domain.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid start date %q", v))
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = domain.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid end date %q", v))
			return
		}
	}

	bars, err := s.store.DailyBars(r.Context(), code, start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := MarketDataResponse{
		AssetCode: asset.Code,
		AssetName: asset.Name,
		Data:      make([]BarPoint, 0, len(bars)),
		Count:     len(bars),
	}
	for _, b := range bars {
		resp.Data = append(resp.Data, BarPoint{
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	if len(bars) > 0 {
		resp.StartDate = bars[0].Date
		resp.EndDate = bars[len(bars)-1].Date
	}
	writeJSON(w, resp)
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context(), "")
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(assets) == 0 {
		writeError(w, http.StatusNotFound, "no assets to update")
		return
	}

	s.updateMu.Lock()
	if s.updateStatus.IsUpdating {
		s.updateMu.Unlock()
		writeJSON(w, MessageResponse{Message: "update already running"})
		return
	}
	s.updateStatus = UpdateStatus{
		IsUpdating: true,
		Total:      len(assets),
		Errors:     []string{},
	}
	s.updateMu.Unlock()

	go s.runUpdateAll(assets)

	writeJSON(w, MessageResponse{
		Message: fmt.Sprintf("started update of %d assets", len(assets)),
	})
}

// runUpdateAll refreshes every asset sequentially, recording progress so
// clients can poll update-status. Errors are collected, not fatal.
func (s *Server) runUpdateAll(assets []domain.Asset) {
	ctx := context.Background()
	for i := range assets {
		asset := &assets[i]
		s.updateMu.Lock()
		s.updateStatus.Current = asset.Code
		s.updateMu.Unlock()

		err := s.refresher.RefreshAsset(ctx, asset)

		s.updateMu.Lock()
		if err != nil {
			s.updateStatus.Errors = append(s.updateStatus.Errors,
				fmt.Sprintf("%s: %v", asset.Code, err))
			s.log.Warn("asset refresh failed", "code", asset.Code, "err", err)
		} else {
			s.updateStatus.Updated++
		}
		s.updateMu.Unlock()
	}

	s.updateMu.Lock()
	s.updateStatus.IsUpdating = false
	s.updateStatus.Current = ""
	s.updateMu.Unlock()
	s.log.Info("market update finished", "total", len(assets))
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	s.updateMu.Lock()
	status := s.updateStatus
	status.Errors = append([]string(nil), s.updateStatus.Errors...)
	s.updateMu.Unlock()
	if status.Errors == nil {
		status.Errors = []string{}
	}
	writeJSON(w, status)
}
