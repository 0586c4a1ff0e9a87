package backtest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// BarSource loads daily bars for an asset code within a date range. A source
// returns an *AssetNotFoundError when the code is unknown; an empty slice
// means the asset exists but has no data in range.
type BarSource interface {
	DailyBars(ctx context.Context, code string, start, end domain.Date) ([]domain.Bar, error)
}

// Engine composes date alignment, portfolio simulation, metrics, and
// benchmark normalization into a single backtest run. One invocation is one
// synchronous pass over the aligned dates; the produced result is immutable.
type Engine struct {
	bars       BarSource
	calc       *Calculator
	benchmarks map[string]string // benchmark key → asset code
	log        *slog.Logger
}

// NewEngine creates an Engine reading prices from the given source. The
// benchmarks map pairs output keys (e.g. "hs300") with asset codes.
func NewEngine(bars BarSource, calc *Calculator, benchmarks map[string]string, log *slog.Logger) *Engine {
	return &Engine{
		bars:       bars,
		calc:       calc,
		benchmarks: benchmarks,
		log:        log,
	}
}

// Run executes a backtest of the strategy's allocation over [start, end]
// with the given initial capital. All fatal conditions abort with no partial
// result: an unknown asset code, an asset with zero bars in range, or an
// empty aligned date set.
func (e *Engine) Run(ctx context.Context, strat *domain.Strategy, start, end domain.Date, initialCapital float64) (*domain.BacktestResult, error) {
	series, err := e.loadSeries(ctx, strat.Allocation, start, end)
	if err != nil {
		return nil, err
	}

	dates, err := AlignDates(series, start, end)
	if err != nil {
		return nil, err
	}

	// Benchmark loading is I/O; fetch the series concurrently before the
	// single-threaded simulation walk.
	benchSeries, err := e.loadBenchmarks(ctx, start, end)
	if err != nil {
		return nil, err
	}

	curve, _ := Simulate(dates, series, strat.Allocation, initialCapital)

	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Value
	}

	result := &domain.BacktestResult{
		StrategyID:      strat.ID,
		StartDate:       start,
		EndDate:         end,
		InitialCapital:  initialCapital,
		Metrics:         e.calc.All(values, start, end),
		EquityCurve:     curve,
		DrawdownCurve:   e.calc.DrawdownCurve(values, dates),
		BenchmarkCurves: BuildBenchmarkCurves(dates, benchSeries, initialCapital),
	}

	e.log.Info("backtest complete",
		"strategy", strat.Name,
		"dates", len(dates),
		"totalReturn", result.Metrics.TotalReturn,
		"maxDrawdown", result.Metrics.MaxDrawdown,
	)
	return result, nil
}

// loadSeries reads the price series for every configured asset. Both error
// conditions are fatal per the run contract.
func (e *Engine) loadSeries(ctx context.Context, allocation map[string]float64, start, end domain.Date) (map[string]Series, error) {
	series := make(map[string]Series, len(allocation))
	for code := range allocation {
		bars, err := e.bars.DailyBars(ctx, code, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, &EmptyPriceSeriesError{Code: code, Start: start, End: end}
		}
		series[code] = NewSeries(bars)
	}
	return series, nil
}

// loadBenchmarks reads all configured benchmark series concurrently.
// Benchmarks that are unknown or have no data in range are skipped, not
// errors.
func (e *Engine) loadBenchmarks(ctx context.Context, start, end domain.Date) (map[string]Series, error) {
	result := make(map[string]Series, len(e.benchmarks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for key, code := range e.benchmarks {
		g.Go(func() error {
			bars, err := e.bars.DailyBars(gctx, code, start, end)
			if err != nil {
				var notFound *AssetNotFoundError
				if errors.As(err, &notFound) {
					e.log.Debug("benchmark asset not found", "key", key, "code", code)
					return nil
				}
				return err
			}
			if len(bars) == 0 {
				return nil
			}
			mu.Lock()
			result[key] = NewSeries(bars)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
