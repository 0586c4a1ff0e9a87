package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ccyingfu/q-alpha/internal/domain"
	"github.com/ccyingfu/q-alpha/internal/store"
	"github.com/ccyingfu/q-alpha/internal/util"
)

// Fetcher retrieves daily bars for one asset from an upstream data source.
type Fetcher interface {
	// FetchDaily returns daily bars for the asset within [start, end].
	// Zero rows in range yields *NoDataError.
	FetchDaily(ctx context.Context, asset *domain.Asset, start, end domain.Date) ([]domain.Bar, error)
}

// Compile-time interface check.
var _ Fetcher = (*BaoStockFetcher)(nil)

// Earliest dates the upstream carries data for.
var (
	defaultIndexStart = domain.Date{Year: 1990, Month: 12, Day: 19}
	defaultETFStart   = domain.Date{Year: 2000, Month: 1, Day: 1}
)

// BaoStockFetcher fetches China-listed assets through a BaoStockClient,
// consulting the local Parquet cache before the network and retrying
// transient failures with exponential backoff.
type BaoStockFetcher struct {
	client  *BaoStockClient
	cache   *store.BarCache
	limiter *util.RateLimiter

	retryAttempts int
	retryDelay    time.Duration

	// Adjustment mode for stocks ("", "qfq", "hfq").
	Adjust string

	log *slog.Logger
}

// NewBaoStockFetcher creates a BaoStockFetcher. cache may be nil to disable
// caching. rateLimitPerMin bounds upstream queries; retryAttempts and
// retryDelay configure backoff.
func NewBaoStockFetcher(client *BaoStockClient, cache *store.BarCache, rateLimitPerMin, retryAttempts int, retryDelay time.Duration, log *slog.Logger) *BaoStockFetcher {
	return &BaoStockFetcher{
		client:        client,
		cache:         cache,
		limiter:       util.NewRateLimiter(rateLimitPerMin),
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
		Adjust:        "qfq",
		log:           log.With("fetcher", "baostock"),
	}
}

// FetchDaily returns daily bars for a China-listed asset within [start, end].
func (f *BaoStockFetcher) FetchDaily(ctx context.Context, asset *domain.Asset, start, end domain.Date) ([]domain.Bar, error) {
	if f.cache != nil {
		if bars, ok := f.cache.Get(asset.Type, f.cacheKey(asset), start, end); ok {
			f.log.Info("cache hit", "code", asset.Code, "bars", len(bars))
			return bars, nil
		}
	}

	adjust := f.adjustFor(asset.Type)
	bsCode := ExchangeCode(asset.Type, asset.Code)

	// Fetch the full upstream history so the cache entry covers later
	// requests, then cut to the requested range.
	histStart := defaultIndexStart
	if asset.Type == domain.AssetETF || asset.Type == domain.AssetFund {
		histStart = defaultETFStart
	}

	var all []domain.Bar
	err := util.Retry(ctx, f.retryAttempts, f.retryDelay, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		bars, err := f.client.QueryDailyBars(ctx, bsCode,
			histStart.String(), end.String(), AdjustFlag(adjust))
		if err != nil {
			// Re-dial once on connection loss before the next attempt.
			var connErr *ConnError
			if errors.As(err, &connErr) {
				f.reconnect(ctx)
			}
			return err
		}
		all = bars
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", asset.Code, err)
	}

	if f.cache != nil {
		if err := f.cache.Put(asset.Type, f.cacheKey(asset), all); err != nil {
			f.log.Warn("cache update failed", "code", asset.Code, "err", err)
		}
	}

	bars := filterRange(all, start, end)
	if len(bars) == 0 {
		return nil, &NoDataError{Code: asset.Code, Start: start.String(), End: end.String()}
	}
	f.log.Info("fetched", "code", asset.Code, "bars", len(bars))
	return bars, nil
}

func (f *BaoStockFetcher) adjustFor(t domain.AssetType) string {
	if t == domain.AssetStock {
		return f.Adjust
	}
	// Indexes and funds are always forward adjusted.
	return "qfq"
}

// Stock cache entries are keyed by adjustment mode as well as code.
func (f *BaoStockFetcher) cacheKey(asset *domain.Asset) string {
	if asset.Type == domain.AssetStock && f.Adjust != "" {
		return asset.Code + "_" + f.Adjust
	}
	return asset.Code
}

func (f *BaoStockFetcher) reconnect(ctx context.Context) {
	f.client.Close()
	if err := f.client.Connect(ctx); err != nil {
		f.log.Warn("reconnect failed", "err", err)
		return
	}
	if err := f.client.Login(ctx); err != nil {
		f.log.Warn("relogin failed", "err", err)
	}
}

func filterRange(bars []domain.Bar, start, end domain.Date) []domain.Bar {
	var out []domain.Bar
	for _, b := range bars {
		if b.Date.Before(start) || b.Date.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
