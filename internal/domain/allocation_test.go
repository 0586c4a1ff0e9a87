package domain

import (
	"math"
	"testing"
)

func TestValidateAllocation(t *testing.T) {
	cases := []struct {
		name       string
		allocation map[string]float64
		want       bool
	}{
		{"exact", map[string]float64{"000300": 0.6, "518880": 0.4}, true},
		{"within tolerance", map[string]float64{"000300": 0.6, "518880": 0.395}, true},
		{"under", map[string]float64{"000300": 0.5, "518880": 0.4}, false},
		{"over", map[string]float64{"000300": 0.8, "518880": 0.4}, false},
		{"negative weight", map[string]float64{"000300": 1.2, "518880": -0.2}, false},
		{"empty", map[string]float64{}, false},
	}
	for _, tc := range cases {
		if got := ValidateAllocation(tc.allocation); got != tc.want {
			t.Errorf("%s: ValidateAllocation = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeAllocation(t *testing.T) {
	normalized := NormalizeAllocation(map[string]float64{"a": 0.3, "b": 0.3})
	if math.Abs(normalized["a"]-0.5) > 1e-12 || math.Abs(normalized["b"]-0.5) > 1e-12 {
		t.Errorf("NormalizeAllocation = %v, want both 0.5", normalized)
	}

	// Zero-sum allocations come back unchanged.
	zero := map[string]float64{"a": 0, "b": 0}
	if got := NormalizeAllocation(zero); got["a"] != 0 || got["b"] != 0 {
		t.Errorf("NormalizeAllocation(zero) = %v, want unchanged", got)
	}
}

func TestMarketForCode(t *testing.T) {
	if got := MarketForCode("000300"); got != MarketCN {
		t.Errorf("MarketForCode(000300) = %v, want cn", got)
	}
	if got := MarketForCode("AAPL"); got != MarketUS {
		t.Errorf("MarketForCode(AAPL) = %v, want us", got)
	}
	if got := MarketForCode("BRK.B"); got != MarketUS {
		t.Errorf("MarketForCode(BRK.B) = %v, want us", got)
	}
}
