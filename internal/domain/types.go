// Package domain defines the core types shared across the q-alpha platform:
// assets, strategies, daily bars, and backtest results.
package domain

import "time"

// AssetType classifies an investable asset.
type AssetType string

const (
	AssetIndex     AssetType = "index"
	AssetETF       AssetType = "etf"
	AssetStock     AssetType = "stock"
	AssetBond      AssetType = "bond"
	AssetFund      AssetType = "fund"
	AssetCommodity AssetType = "commodity"
)

// ValidAssetType reports whether t is a known asset type.
func ValidAssetType(t AssetType) bool {
	switch t {
	case AssetIndex, AssetETF, AssetStock, AssetBond, AssetFund, AssetCommodity:
		return true
	}
	return false
}

// Market identifies the exchange region an asset trades in.
type Market string

const (
	MarketCN Market = "cn"
	MarketUS Market = "us"
)

// MarketForCode infers the market from an asset code: all-digit codes are
// China A-share/index codes, alphabetic tickers are US symbols.
func MarketForCode(code string) Market {
	for _, r := range code {
		if r < '0' || r > '9' {
			return MarketUS
		}
	}
	return MarketCN
}

// Asset is an investable instrument known to the platform.
type Asset struct {
	ID          int64
	Code        string
	Name        string
	Type        AssetType
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RebalanceType is a strategy's configured rebalancing policy. The simulation
// is buy-and-hold and never consumes this; it is stored and served as
// strategy metadata only.
type RebalanceType string

const (
	RebalanceMonthly   RebalanceType = "monthly"
	RebalanceQuarterly RebalanceType = "quarterly"
	RebalanceYearly    RebalanceType = "yearly"
	RebalanceThreshold RebalanceType = "threshold"
)

// ValidRebalanceType reports whether t is a known rebalance type.
func ValidRebalanceType(t RebalanceType) bool {
	switch t {
	case RebalanceMonthly, RebalanceQuarterly, RebalanceYearly, RebalanceThreshold:
		return true
	}
	return false
}

// Strategy defines a portfolio's target allocation.
type Strategy struct {
	ID                 int64
	Name               string
	Description        string
	Allocation         map[string]float64 // asset code → weight, sums to ~1
	RebalanceType      RebalanceType
	RebalanceThreshold *float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Bar is one trading day of OHLCV data for an asset.
type Bar struct {
	Code   string
	Date   Date
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CurvePoint is one (date, value) sample of an equity, drawdown, or
// benchmark curve.
type CurvePoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}

// Metrics holds the performance statistics of one backtest run. The three
// ratio pointers are nil when the metric's denominator is degenerate (zero
// volatility, no negative returns, zero drawdown); nil is serialized as JSON
// null rather than a NaN sentinel.
type Metrics struct {
	TotalReturn    float64  `json:"total_return"`
	AnnualReturn   float64  `json:"annual_return"`
	MaxDrawdown    float64  `json:"max_drawdown"`
	Volatility     float64  `json:"volatility"`
	SharpeRatio    *float64 `json:"sharpe_ratio"`
	SortinoRatio   *float64 `json:"sortino_ratio"`
	CalmarRatio    *float64 `json:"calmar_ratio"`
	RebalanceCount int      `json:"rebalance_count"`
}

// BacktestResult is the persisted outcome of one backtest run.
type BacktestResult struct {
	ID              int64
	StrategyID      int64
	StartDate       Date
	EndDate         Date
	InitialCapital  float64
	Metrics         Metrics
	EquityCurve     []CurvePoint
	DrawdownCurve   []CurvePoint
	BenchmarkCurves map[string][]CurvePoint
	CreatedAt       time.Time
}
