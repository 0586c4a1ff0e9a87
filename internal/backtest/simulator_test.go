package backtest

import (
	"math"
	"testing"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// Two assets A (0.6) and B (0.4), capital 100000, three trading days:
// A closes [10, 11, 9], B closes [20, 20, 22].
func twoAssetFixture() ([]domain.Date, map[string]Series, map[string]float64) {
	series := map[string]Series{
		"A": barsOn("A", map[int]float64{2: 10, 3: 11, 4: 9}),
		"B": barsOn("B", map[int]float64{2: 20, 3: 20, 4: 22}),
	}
	weights := map[string]float64{"A": 0.6, "B": 0.4}
	return []domain.Date{day(2), day(3), day(4)}, series, weights
}

func TestSimulateTwoAssets(t *testing.T) {
	dates, series, weights := twoAssetFixture()

	curve, holdings := Simulate(dates, series, weights, 100000)
	if len(curve) != 3 {
		t.Fatalf("curve has %d points, want 3", len(curve))
	}

	// 60000/10 = 6000 units of A, 40000/20 = 2000 units of B.
	if math.Abs(holdings["A"]-6000) > 1e-9 {
		t.Errorf("holdings[A] = %v, want 6000", holdings["A"])
	}
	if math.Abs(holdings["B"]-2000) > 1e-9 {
		t.Errorf("holdings[B] = %v, want 2000", holdings["B"])
	}

	want := []float64{100000, 106000, 98000}
	for i, w := range want {
		if math.Abs(curve[i].Value-w) > 1e-6 {
			t.Errorf("curve[%d].Value = %v, want %v", i, curve[i].Value, w)
		}
	}
}

func TestSimulateRenormalizesWeights(t *testing.T) {
	// B's data starts a day later than A's, so the first data day deploys
	// all capital into A despite its configured weight of 0.6.
	series := map[string]Series{
		"A": barsOn("A", map[int]float64{2: 10, 3: 10}),
		"B": barsOn("B", map[int]float64{3: 20}),
	}
	weights := map[string]float64{"A": 0.6, "B": 0.4}
	dates := []domain.Date{day(2), day(3)}

	curve, holdings := Simulate(dates, series, weights, 100000)

	// Effective weight of A on the initializing date is 0.6/0.6 = 1.
	if math.Abs(holdings["A"]-10000) > 1e-9 {
		t.Errorf("holdings[A] = %v, want 10000 (all capital)", holdings["A"])
	}
	if _, ok := holdings["B"]; ok {
		t.Errorf("holdings[B] = %v, want no position", holdings["B"])
	}

	// Deployed value on day one equals the full initial capital.
	if math.Abs(curve[0].Value-100000) > 1e-6 {
		t.Errorf("curve[0].Value = %v, want 100000", curve[0].Value)
	}
}

func TestSimulateZeroWeightFirstDay(t *testing.T) {
	// Day 2 only has data for the zero-weight asset; investment waits for
	// day 3 when a weighted asset trades.
	series := map[string]Series{
		"A": barsOn("A", map[int]float64{3: 10, 4: 12}),
		"Z": barsOn("Z", map[int]float64{2: 5, 3: 5, 4: 5}),
	}
	weights := map[string]float64{"A": 1.0, "Z": 0.0}
	dates := []domain.Date{day(2), day(3), day(4)}

	curve, holdings := Simulate(dates, series, weights, 100000)

	if math.Abs(holdings["A"]-10000) > 1e-9 {
		t.Errorf("holdings[A] = %v, want 10000", holdings["A"])
	}

	// Day 2 records the uninvested capital; days 3-4 track A.
	want := []float64{100000, 100000, 120000}
	for i, w := range want {
		if math.Abs(curve[i].Value-w) > 1e-6 {
			t.Errorf("curve[%d].Value = %v, want %v", i, curve[i].Value, w)
		}
	}
}

func TestSimulateCarryForward(t *testing.T) {
	// Day 3 has no data for any asset: the curve repeats day 2's value.
	series := map[string]Series{
		"A": barsOn("A", map[int]float64{2: 10, 4: 15}),
		"B": barsOn("B", map[int]float64{3: 7}),
	}
	// B gives day 3 a date in the union but carries no position.
	weights := map[string]float64{"A": 1.0}
	dates := []domain.Date{day(2), day(3), day(4)}

	curve, _ := Simulate(dates, series, weights, 100000)

	if curve[1].Value != curve[0].Value {
		t.Errorf("carry-forward: curve[1].Value = %v, want %v", curve[1].Value, curve[0].Value)
	}
	if math.Abs(curve[2].Value-150000) > 1e-6 {
		t.Errorf("curve[2].Value = %v, want 150000", curve[2].Value)
	}
}
