package backtest

import "github.com/ccyingfu/q-alpha/internal/domain"

// BuildBenchmarkCurves normalizes each benchmark's price series to the
// portfolio's initial capital over the same aligned dates, for side-by-side
// comparison with the equity curve.
//
// For each benchmark the first aligned date with a price emits the initial
// capital and fixes that price as the baseline; later priced dates emit
// capital × (1 + (price-baseline)/baseline); unpriced dates after the
// baseline carry the previous value forward. Dates before the first price
// produce no point. Benchmarks with no data at all inside the aligned dates
// are omitted from the result.
func BuildBenchmarkCurves(dates []domain.Date, benchmarks map[string]Series, initialCapital float64) map[string][]domain.CurvePoint {
	curves := make(map[string][]domain.CurvePoint, len(benchmarks))

	for key, series := range benchmarks {
		var curve []domain.CurvePoint
		baseline := 0.0
		priced := false

		for _, date := range dates {
			price, ok := series.Close(date)
			switch {
			case ok && !priced:
				baseline = price
				priced = true
				curve = append(curve, domain.CurvePoint{Date: date, Value: initialCapital})
			case ok:
				value := initialCapital * (1 + (price-baseline)/baseline)
				curve = append(curve, domain.CurvePoint{Date: date, Value: value})
			case priced:
				curve = append(curve, domain.CurvePoint{Date: date, Value: curve[len(curve)-1].Value})
			}
		}

		if len(curve) > 0 {
			curves[key] = curve
		}
	}
	return curves
}
