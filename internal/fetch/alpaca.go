package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// AlpacaFetcher fetches US-listed assets through the Alpaca market-data API.
type AlpacaFetcher struct {
	client *marketdata.Client
	feed   string
	log    *slog.Logger
}

// NewAlpacaFetcher creates an AlpacaFetcher with the given credentials.
// dataURL overrides the default API endpoint when non-empty.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string, log *slog.Logger) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaFetcher{
		client: marketdata.NewClient(opts),
		feed:   "iex",
		log:    log.With("fetcher", "alpaca"),
	}
}

// FetchDaily returns daily bars for a US-listed asset within [start, end].
func (f *AlpacaFetcher) FetchDaily(ctx context.Context, asset *domain.Asset, start, end domain.Date) ([]domain.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	alpacaBars, err := f.client.GetBars(asset.Code, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start.Time(),
		End:       end.Time(),
		Feed:      marketdata.Feed(f.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", asset.Code, err)
	}
	if len(alpacaBars) == 0 {
		return nil, &NoDataError{Code: asset.Code, Start: start.String(), End: end.String()}
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Code:   asset.Code,
			Date:   domain.DateOf(ab.Timestamp),
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: float64(ab.Volume),
		})
	}
	f.log.Info("fetched", "code", asset.Code, "bars", len(bars))
	return bars, nil
}
