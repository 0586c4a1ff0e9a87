// Package store defines storage interfaces for persisting and retrieving
// domain objects such as assets, strategies, daily market bars, and
// backtest results.
package store

import (
	"context"
	"errors"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// AssetStore persists and retrieves tradable assets.
type AssetStore interface {
	// CreateAsset inserts a new asset and fills in its ID and timestamps.
	CreateAsset(ctx context.Context, a *domain.Asset) error

	// GetAsset retrieves a single asset by its ID.
	GetAsset(ctx context.Context, id int64) (*domain.Asset, error)

	// GetAssetByCode retrieves a single asset by its market code.
	GetAssetByCode(ctx context.Context, code string) (*domain.Asset, error)

	// ListAssets returns all assets, optionally filtered by type.
	ListAssets(ctx context.Context, assetType string) ([]domain.Asset, error)

	// UpdateAsset persists changes to an existing asset.
	UpdateAsset(ctx context.Context, a *domain.Asset) error

	// DeleteAsset removes an asset and its market data.
	DeleteAsset(ctx context.Context, id int64) error
}

// StrategyStore persists and retrieves portfolio strategies.
type StrategyStore interface {
	// CreateStrategy inserts a new strategy and fills in its ID and timestamps.
	CreateStrategy(ctx context.Context, s *domain.Strategy) error

	// GetStrategy retrieves a single strategy by its ID.
	GetStrategy(ctx context.Context, id int64) (*domain.Strategy, error)

	// GetStrategyByName retrieves a single strategy by its unique name.
	GetStrategyByName(ctx context.Context, name string) (*domain.Strategy, error)

	// ListStrategies returns all strategies.
	ListStrategies(ctx context.Context) ([]domain.Strategy, error)

	// UpdateStrategy persists changes to an existing strategy.
	UpdateStrategy(ctx context.Context, s *domain.Strategy) error

	// DeleteStrategy removes a strategy and its backtest results.
	DeleteStrategy(ctx context.Context, id int64) error
}

// MarketStore persists and retrieves daily OHLCV bars.
type MarketStore interface {
	// UpsertBars inserts bars for an asset, replacing rows on date conflicts.
	UpsertBars(ctx context.Context, assetID int64, bars []domain.Bar) error

	// DeleteBars removes all bars for an asset.
	DeleteBars(ctx context.Context, assetID int64) error

	// LatestBarDate returns the date of the most recent bar for an asset,
	// or a zero Date if none exist.
	LatestBarDate(ctx context.Context, assetID int64) (domain.Date, error)

	// DailyBars returns bars for the given asset code within [start, end],
	// ordered by date.
	DailyBars(ctx context.Context, code string, start, end domain.Date) ([]domain.Bar, error)
}

// ResultStore persists and retrieves backtest results.
type ResultStore interface {
	// SaveResult inserts a new backtest result and fills in its ID.
	SaveResult(ctx context.Context, r *domain.BacktestResult) error

	// GetResult retrieves a single result by its ID.
	GetResult(ctx context.Context, id int64) (*domain.BacktestResult, error)

	// ListResults returns result summaries, optionally filtered by strategy.
	ListResults(ctx context.Context, strategyID int64) ([]domain.BacktestResult, error)

	// DeleteResult removes a single result.
	DeleteResult(ctx context.Context, id int64) error

	// DeleteResults removes a batch of results and reports how many existed.
	DeleteResults(ctx context.Context, ids []int64) (int, error)
}
