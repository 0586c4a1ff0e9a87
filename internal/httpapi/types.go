package httpapi

import (
	"time"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// AssetPayload is the request body for creating or updating an asset.
type AssetPayload struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AssetResponse is the JSON shape of an asset.
type AssetResponse struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func assetResponse(a *domain.Asset) AssetResponse {
	return AssetResponse{
		ID:          a.ID,
		Code:        a.Code,
		Name:        a.Name,
		Type:        string(a.Type),
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// StrategyPayload is the request body for creating or updating a strategy.
type StrategyPayload struct {
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Allocation         map[string]float64 `json:"allocation"`
	RebalanceType      string             `json:"rebalance_type"`
	RebalanceThreshold *float64           `json:"rebalance_threshold"`
}

// StrategyResponse is the JSON shape of a strategy.
type StrategyResponse struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	Allocation         map[string]float64 `json:"allocation"`
	RebalanceType      string             `json:"rebalance_type"`
	RebalanceThreshold *float64           `json:"rebalance_threshold"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func strategyResponse(s *domain.Strategy) StrategyResponse {
	return StrategyResponse{
		ID:                 s.ID,
		Name:               s.Name,
		Description:        s.Description,
		Allocation:         s.Allocation,
		RebalanceType:      string(s.RebalanceType),
		RebalanceThreshold: s.RebalanceThreshold,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

// BarPoint is one row of daily market data.
type BarPoint struct {
	Date   domain.Date `json:"date"`
	Open   float64     `json:"open"`
	High   float64     `json:"high"`
	Low    float64     `json:"low"`
	Close  float64     `json:"close"`
	Volume float64     `json:"volume"`
}

// MarketDataResponse wraps an asset's daily bars.
type MarketDataResponse struct {
	AssetCode string      `json:"asset_code"`
	AssetName string      `json:"asset_name"`
	Data      []BarPoint  `json:"data"`
	StartDate domain.Date `json:"start_date"`
	EndDate   domain.Date `json:"end_date"`
	Count     int         `json:"count"`
}

// UpdateStatus reports the progress of a background market-data refresh.
type UpdateStatus struct {
	IsUpdating bool     `json:"is_updating"`
	Current    string   `json:"current"`
	Total      int      `json:"total"`
	Updated    int      `json:"updated"`
	Errors     []string `json:"errors"`
}

// BacktestRequest is the request body for running a backtest.
type BacktestRequest struct {
	StrategyID     int64       `json:"strategy_id"`
	StartDate      domain.Date `json:"start_date"`
	EndDate        domain.Date `json:"end_date"`
	InitialCapital float64     `json:"initial_capital"`
}

// BacktestResponse is the JSON shape of a backtest result.
type BacktestResponse struct {
	ID              int64                          `json:"id"`
	StrategyID      int64                          `json:"strategy_id"`
	StrategyName    string                         `json:"strategy_name"`
	StartDate       domain.Date                    `json:"start_date"`
	EndDate         domain.Date                    `json:"end_date"`
	InitialCapital  float64                        `json:"initial_capital"`
	Metrics         domain.Metrics                 `json:"metrics"`
	EquityCurve     []domain.CurvePoint            `json:"equity_curve"`
	DrawdownCurve   []domain.CurvePoint            `json:"drawdown_curve"`
	BenchmarkCurves map[string][]domain.CurvePoint `json:"benchmark_curves"`
	CreatedAt       time.Time                      `json:"created_at"`
}

func backtestResponse(r *domain.BacktestResult, strategyName string) BacktestResponse {
	return BacktestResponse{
		ID:              r.ID,
		StrategyID:      r.StrategyID,
		StrategyName:    strategyName,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		InitialCapital:  r.InitialCapital,
		Metrics:         r.Metrics,
		EquityCurve:     r.EquityCurve,
		DrawdownCurve:   r.DrawdownCurve,
		BenchmarkCurves: r.BenchmarkCurves,
		CreatedAt:       r.CreatedAt,
	}
}

// BatchDeleteRequest is the request body for deleting several results.
type BatchDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// BatchDeleteResponse confirms a batch delete.
type BatchDeleteResponse struct {
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}
