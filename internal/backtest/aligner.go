package backtest

import (
	"sort"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// AlignDates computes the ordered, deduplicated union of all per-asset
// trading dates restricted to [start, end] inclusive. Dates on which only
// some assets have data are kept; downstream components handle the gaps.
// Returns a NoTradingDatesError when the filtered union is empty.
func AlignDates(series map[string]Series, start, end domain.Date) ([]domain.Date, error) {
	seen := make(map[domain.Date]struct{})
	for _, s := range series {
		for d := range s {
			if d.Before(start) || d.After(end) {
				continue
			}
			seen[d] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, &NoTradingDatesError{Start: start, End: end}
	}

	dates := make([]domain.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
