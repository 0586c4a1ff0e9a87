package backtest

import "github.com/ccyingfu/q-alpha/internal/domain"

// Simulate replays a buy-and-hold portfolio over the aligned dates and
// returns the equity curve plus the final holdings (asset code → share
// quantity, fractional shares allowed).
//
// The simulation has two states. It starts uninvested; on the first date
// where at least one positively weighted asset has price data, the
// configured weights are re-normalized over just the assets with data that
// day, so that 100% of the capital is deployed rather than held idle for
// assets whose series starts later. From then on no trades occur: every date
// revalues the fixed holdings at that day's closing prices. Dates with no
// data for any held asset carry the previous value forward, so the curve is
// defined for every aligned date.
func Simulate(dates []domain.Date, series map[string]Series, weights map[string]float64, initialCapital float64) ([]domain.CurvePoint, map[string]float64) {
	curve := make([]domain.CurvePoint, 0, len(dates))
	holdings := make(map[string]float64, len(weights))
	cash := initialCapital
	invested := false

	for _, date := range dates {
		if !invested {
			available := 0.0
			for code, w := range weights {
				if _, ok := series[code][date]; ok {
					available += w
				}
			}
			// A day whose only data belongs to zero-weight assets leaves the
			// portfolio uninvested; retry on the next date.
			if available > 0 {
				for code, w := range weights {
					price, ok := series[code].Close(date)
					if !ok {
						continue
					}
					holdings[code] = cash * (w / available) / price
				}
				cash = 0
				invested = true
			}
		}

		total := cash
		hasData := false
		for code, qty := range holdings {
			if qty <= 0 {
				continue
			}
			if price, ok := series[code].Close(date); ok {
				hasData = true
				total += qty * price
			}
		}

		if hasData || len(curve) == 0 {
			curve = append(curve, domain.CurvePoint{Date: date, Value: total})
		} else {
			curve = append(curve, domain.CurvePoint{Date: date, Value: curve[len(curve)-1].Value})
		}
	}

	return curve, holdings
}
