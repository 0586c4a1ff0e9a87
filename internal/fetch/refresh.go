package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// StaleAfterDays is how old an asset's newest bar may be before a refresh
// re-fetches its history.
const StaleAfterDays = 7

// RefreshStore is the storage surface the refresher needs.
type RefreshStore interface {
	ListAssets(ctx context.Context, assetType string) ([]domain.Asset, error)
	GetAssetByCode(ctx context.Context, code string) (*domain.Asset, error)
	UpsertBars(ctx context.Context, assetID int64, bars []domain.Bar) error
	DeleteBars(ctx context.Context, assetID int64) error
	LatestBarDate(ctx context.Context, assetID int64) (domain.Date, error)
}

// RefreshSummary reports the outcome of a bulk refresh.
type RefreshSummary struct {
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Refresher keeps market_daily rows current. An asset is refreshed when it
// has no bars, its newest bar is older than StaleAfterDays, or its history
// does not reach back to a requested start date. A refresh replaces the
// asset's stored history wholesale so upstream price adjustments propagate.
type Refresher struct {
	store    RefreshStore
	fetchers map[domain.Market]Fetcher
	log      *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewRefresher creates a Refresher routing each asset to the fetcher for its
// market.
func NewRefresher(s RefreshStore, fetchers map[domain.Market]Fetcher, log *slog.Logger) *Refresher {
	return &Refresher{
		store:    s,
		fetchers: fetchers,
		log:      log.With("component", "refresher"),
		Now:      time.Now,
	}
}

// EnsureData guarantees the asset with the given code has bars covering
// [start, end] in the store, fetching from upstream if its history is
// missing, stale, or too short.
func (r *Refresher) EnsureData(ctx context.Context, code string, start, end domain.Date) error {
	asset, err := r.store.GetAssetByCode(ctx, code)
	if err != nil {
		return err
	}

	latest, err := r.store.LatestBarDate(ctx, asset.ID)
	if err != nil {
		return err
	}
	if !r.needsRefresh(latest, end) {
		return nil
	}
	return r.refresh(ctx, asset, start, end)
}

// RefreshAsset unconditionally re-fetches one asset's history.
func (r *Refresher) RefreshAsset(ctx context.Context, asset *domain.Asset) error {
	today := domain.DateOf(r.Now())
	return r.refresh(ctx, asset, domain.Date{}, today)
}

// RefreshAll refreshes every stored asset whose data is stale, fanning out
// across assets with bounded concurrency. Per-asset failures are counted
// and logged, not fatal.
func (r *Refresher) RefreshAll(ctx context.Context) (*RefreshSummary, error) {
	assets, err := r.store.ListAssets(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	today := domain.DateOf(r.Now())
	var summary RefreshSummary

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	results := make([]error, len(assets))
	skipped := make([]bool, len(assets))

	for i := range assets {
		i := i
		asset := assets[i]
		g.Go(func() error {
			latest, err := r.store.LatestBarDate(gctx, asset.ID)
			if err != nil {
				results[i] = err
				return nil
			}
			if !r.needsRefresh(latest, today) {
				skipped[i] = true
				return nil
			}
			results[i] = r.refresh(gctx, &asset, domain.Date{}, today)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range assets {
		switch {
		case skipped[i]:
			summary.Skipped++
		case results[i] != nil:
			summary.Failed++
			r.log.Error("refresh failed", "code", assets[i].Code, "err", results[i])
		default:
			summary.Refreshed++
		}
	}
	r.log.Info("refresh complete",
		"refreshed", summary.Refreshed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return &summary, nil
}

// needsRefresh reports whether data ending at latest is stale relative to
// the requested end date.
func (r *Refresher) needsRefresh(latest, end domain.Date) bool {
	if latest.IsZero() {
		return true
	}
	return end.DaysSince(latest) > StaleAfterDays
}

func (r *Refresher) refresh(ctx context.Context, asset *domain.Asset, start, end domain.Date) error {
	fetcher, ok := r.fetchers[domain.MarketForCode(asset.Code)]
	if !ok {
		return fmt.Errorf("no fetcher for market %q", domain.MarketForCode(asset.Code))
	}

	if start.IsZero() {
		start = defaultIndexStart
	}
	bars, err := fetcher.FetchDaily(ctx, asset, start, end)
	if err != nil {
		var noData *NoDataError
		if errors.As(err, &noData) {
			r.log.Warn("no upstream data", "code", asset.Code)
			return err
		}
		return fmt.Errorf("refreshing %s: %w", asset.Code, err)
	}

	if err := r.store.DeleteBars(ctx, asset.ID); err != nil {
		return err
	}
	if err := r.store.UpsertBars(ctx, asset.ID, bars); err != nil {
		return err
	}
	r.log.Info("refreshed", "code", asset.Code, "bars", len(bars))
	return nil
}
