// Package backtest simulates buy-and-hold portfolio strategies over daily
// price history and derives risk/return statistics and comparison curves.
package backtest

import "github.com/ccyingfu/q-alpha/internal/domain"

// Series is one asset's daily price history keyed by trading date. A Series
// is read-only once handed to the engine.
type Series map[domain.Date]domain.Bar

// NewSeries builds a Series from a slice of bars, keeping the last bar when
// a date appears more than once.
func NewSeries(bars []domain.Bar) Series {
	s := make(Series, len(bars))
	for _, b := range bars {
		s[b.Date] = b
	}
	return s
}

// Close returns the closing price for a date and whether the date is present.
func (s Series) Close(d domain.Date) (float64, bool) {
	bar, ok := s[d]
	return bar.Close, ok
}
