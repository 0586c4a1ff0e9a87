// Package chart renders backtest results as PNG line charts.
package chart

import (
	"fmt"
	"sort"

	"github.com/vicanso/go-charts/v2"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// Render draws the equity curve of a backtest result with benchmark
// overlays and a metrics subtitle, returning PNG bytes.
func Render(result *domain.BacktestResult, strategyName string) ([]byte, error) {
	if len(result.EquityCurve) == 0 {
		return nil, fmt.Errorf("result %d has no equity curve", result.ID)
	}

	xLabels := make([]string, len(result.EquityCurve))
	equity := make([]float64, len(result.EquityCurve))
	for i, p := range result.EquityCurve {
		xLabels[i] = p.Date.String()
		equity[i] = p.Value
	}

	series := [][]float64{equity}
	legend := []string{strategyName}

	// Benchmark curves can start later or skip dates; align them to the
	// equity curve's dates and fill gaps with null points.
	for _, name := range sortedKeys(result.BenchmarkCurves) {
		byDate := make(map[domain.Date]float64, len(result.BenchmarkCurves[name]))
		for _, p := range result.BenchmarkCurves[name] {
			byDate[p.Date] = p.Value
		}
		values := make([]float64, len(result.EquityCurve))
		for i, p := range result.EquityCurve {
			if v, ok := byDate[p.Date]; ok {
				values[i] = v
			} else {
				values[i] = charts.GetNullValue()
			}
		}
		series = append(series, values)
		legend = append(legend, name)
	}

	yMin, yMax := axisRange(series)

	title := fmt.Sprintf("%s  %s ~ %s", strategyName, result.StartDate, result.EndDate)
	subtitle := fmt.Sprintf("Return: %.2f%% | CAGR: %.2f%% | Vol: %.2f%% | MaxDD: %.2f%%",
		result.Metrics.TotalReturn*100,
		result.Metrics.AnnualReturn*100,
		result.Metrics.Volatility*100,
		result.Metrics.MaxDrawdown*100,
	)

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	p, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc(title+"\n"+subtitle),
		charts.LegendLabelsOptionFunc(legend),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(500),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding chart: %w", err)
	}
	return buf, nil
}

func sortedKeys(m map[string][]domain.CurvePoint) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func axisRange(series [][]float64) (float64, float64) {
	null := charts.GetNullValue()
	minVal, maxVal := series[0][0], series[0][0]
	for _, s := range series {
		for _, v := range s {
			if v == null {
				continue
			}
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	return minVal - padding, maxVal + padding
}
