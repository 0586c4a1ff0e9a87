package backtest

import (
	"math"
	"testing"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

func TestBuildBenchmarkCurves(t *testing.T) {
	dates := []domain.Date{day(2), day(3), day(4)}
	benchmarks := map[string]Series{
		"hs300": barsOn("000300", map[int]float64{2: 4000, 3: 4100, 4: 3900}),
	}

	curves := BuildBenchmarkCurves(dates, benchmarks, 100000)
	curve, ok := curves["hs300"]
	if !ok {
		t.Fatal("hs300 curve missing")
	}
	if len(curve) != 3 {
		t.Fatalf("curve has %d points, want 3", len(curve))
	}

	// First priced date emits the initial capital.
	if curve[0].Value != 100000 {
		t.Errorf("curve[0].Value = %v, want 100000", curve[0].Value)
	}
	// Later dates scale by (1 + (p-p0)/p0).
	want := 100000 * (1 + (4100.0-4000.0)/4000.0)
	if math.Abs(curve[1].Value-want) > 1e-9 {
		t.Errorf("curve[1].Value = %v, want %v", curve[1].Value, want)
	}
	want = 100000 * (1 + (3900.0-4000.0)/4000.0)
	if math.Abs(curve[2].Value-want) > 1e-9 {
		t.Errorf("curve[2].Value = %v, want %v", curve[2].Value, want)
	}
}

func TestBuildBenchmarkCurvesGaps(t *testing.T) {
	dates := []domain.Date{day(2), day(3), day(4), day(5)}
	benchmarks := map[string]Series{
		// No price on day 2 (starts late) or day 4 (gap mid-series).
		"sh": barsOn("000001", map[int]float64{3: 3000, 5: 3300}),
	}

	curves := BuildBenchmarkCurves(dates, benchmarks, 100000)
	curve := curves["sh"]

	// Day 2 precedes the baseline: no point emitted.
	if len(curve) != 3 {
		t.Fatalf("curve has %d points, want 3", len(curve))
	}
	if curve[0].Date != day(3) || curve[0].Value != 100000 {
		t.Errorf("curve[0] = %+v, want baseline 100000 on 2024-01-03", curve[0])
	}
	// Day 4 carries day 3's value forward.
	if curve[1].Date != day(4) || curve[1].Value != curve[0].Value {
		t.Errorf("curve[1] = %+v, want carried-forward %v", curve[1], curve[0].Value)
	}
	want := 100000 * (1 + (3300.0-3000.0)/3000.0)
	if math.Abs(curve[2].Value-want) > 1e-9 {
		t.Errorf("curve[2].Value = %v, want %v", curve[2].Value, want)
	}
}

func TestBuildBenchmarkCurvesOmitsEmpty(t *testing.T) {
	dates := []domain.Date{day(2), day(3)}
	benchmarks := map[string]Series{
		"hs300": barsOn("000300", map[int]float64{2: 4000, 3: 4100}),
		"sh":    barsOn("000001", map[int]float64{20: 3000}), // outside aligned dates
	}

	curves := BuildBenchmarkCurves(dates, benchmarks, 100000)
	if _, ok := curves["sh"]; ok {
		t.Error("benchmark with no data inside the aligned dates should be omitted")
	}
	if _, ok := curves["hs300"]; !ok {
		t.Error("hs300 curve missing")
	}
}
