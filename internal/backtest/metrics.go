package backtest

import (
	"math"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// Calculator computes performance statistics over an equity value sequence.
// All methods are pure; a Calculator only carries the two annualization
// parameters.
type Calculator struct {
	RiskFreeRate       float64
	TradingDaysPerYear int
}

// NewCalculator returns a Calculator with the given annualization parameters.
func NewCalculator(riskFreeRate float64, tradingDaysPerYear int) *Calculator {
	return &Calculator{
		RiskFreeRate:       riskFreeRate,
		TradingDaysPerYear: tradingDaysPerYear,
	}
}

// TotalReturn is V[n-1]/V[0] - 1, or 0 for fewer than two values.
func (c *Calculator) TotalReturn(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return values[len(values)-1]/values[0] - 1
}

// AnnualReturn is the CAGR implied by the total return over the elapsed
// calendar span, using 365.25-day years. Returns 0 when the span is not
// positive or there are fewer than two values.
func (c *Calculator) AnnualReturn(values []float64, start, end domain.Date) float64 {
	if len(values) < 2 {
		return 0
	}
	years := float64(end.DaysSince(start)) / 365.25
	if years <= 0 {
		return 0
	}
	return math.Pow(1+c.TotalReturn(values), 1/years) - 1
}

// MaxDrawdown is the most negative relative decline from the running peak,
// always <= 0. Returns 0 for fewer than two values.
func (c *Calculator) MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	maxDD := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if dd := (v - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// DrawdownCurve pairs each date with its decline from the running peak.
func (c *Calculator) DrawdownCurve(values []float64, dates []domain.Date) []domain.CurvePoint {
	curve := make([]domain.CurvePoint, len(values))
	peak := 0.0
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		curve[i] = domain.CurvePoint{Date: dates[i], Value: (v - peak) / peak}
	}
	return curve
}

// DailyReturns computes simple day-over-day returns; empty for fewer than
// two values.
func (c *Calculator) DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		returns[i-1] = values[i]/values[i-1] - 1
	}
	return returns
}

// Volatility is the annualized standard deviation of daily returns, or 0
// when fewer than two returns exist or the deviation is 0.
func (c *Calculator) Volatility(returns []float64) float64 {
	sd := stddev(returns)
	if sd == 0 {
		return 0
	}
	return sd * math.Sqrt(float64(c.TradingDaysPerYear))
}

// SharpeRatio is the excess annual return over annualized volatility, nil
// when no returns exist or volatility is 0.
func (c *Calculator) SharpeRatio(returns []float64, annualReturn float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	vol := c.Volatility(returns)
	if vol == 0 {
		return nil
	}
	sharpe := (annualReturn - c.RiskFreeRate) / vol
	return &sharpe
}

// SortinoRatio is the excess annual return over annualized downside-only
// deviation, nil when there are no negative returns or the downside
// deviation is 0.
func (c *Calculator) SortinoRatio(returns []float64, annualReturn float64) *float64 {
	if len(returns) == 0 {
		return nil
	}
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return nil
	}
	downsideVol := stddev(downside) * math.Sqrt(float64(c.TradingDaysPerYear))
	if downsideVol == 0 {
		return nil
	}
	sortino := (annualReturn - c.RiskFreeRate) / downsideVol
	return &sortino
}

// CalmarRatio is the annual return over the magnitude of the maximum
// drawdown, nil when the drawdown is 0.
func (c *Calculator) CalmarRatio(annualReturn, maxDrawdown float64) *float64 {
	if maxDrawdown == 0 {
		return nil
	}
	calmar := annualReturn / math.Abs(maxDrawdown)
	return &calmar
}

// All computes every metric over the equity values. The rebalance count is
// always 0: the simulation never trades after the initial purchase.
func (c *Calculator) All(values []float64, start, end domain.Date) domain.Metrics {
	returns := c.DailyReturns(values)
	annual := c.AnnualReturn(values, start, end)
	maxDD := c.MaxDrawdown(values)

	return domain.Metrics{
		TotalReturn:  c.TotalReturn(values),
		AnnualReturn: annual,
		MaxDrawdown:  maxDD,
		Volatility:   c.Volatility(returns),
		SharpeRatio:  c.SharpeRatio(returns, annual),
		SortinoRatio: c.SortinoRatio(returns, annual),
		CalmarRatio:  c.CalmarRatio(annual, maxDD),
	}
}

// stddev is the sample standard deviation, 0 for fewer than two values.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sum := 0.0
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
