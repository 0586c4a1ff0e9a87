package backtest

import (
	"fmt"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// AssetNotFoundError indicates a strategy references an asset code with no
// price series at all.
type AssetNotFoundError struct {
	Code string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset %s not found", e.Code)
}

// EmptyPriceSeriesError indicates an asset exists but has zero data points in
// the requested range.
type EmptyPriceSeriesError struct {
	Code  string
	Start domain.Date
	End   domain.Date
}

func (e *EmptyPriceSeriesError) Error() string {
	return fmt.Sprintf("no market data for asset %s in [%s, %s]", e.Code, e.Start, e.End)
}

// NoTradingDatesError indicates the union of all per-asset dates is empty
// after range filtering.
type NoTradingDatesError struct {
	Start domain.Date
	End   domain.Date
}

func (e *NoTradingDatesError) Error() string {
	return fmt.Sprintf("no trading dates in [%s, %s]", e.Start, e.End)
}
