package fetch

import (
	"testing"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

func TestExchangeCode(t *testing.T) {
	cases := []struct {
		assetType domain.AssetType
		code      string
		want      string
	}{
		{domain.AssetIndex, "000300", "sh.000300"},
		{domain.AssetIndex, "000001", "sh.000001"},
		{domain.AssetIndex, "399001", "sz.399001"},
		{domain.AssetIndex, "888888", "sh.888888"}, // unknown index defaults to Shanghai
		{domain.AssetStock, "600519", "sh.600519"},
		{domain.AssetStock, "002594", "sz.002594"},
		{domain.AssetStock, "300750", "sz.300750"},
		{domain.AssetStock, "830799", "bj.830799"},
		{domain.AssetETF, "518880", "sh.518880"},
		{domain.AssetFund, "510300", "sh.510300"},
		{domain.AssetIndex, "sz.399006", "sz.399006"}, // already prefixed
	}
	for _, c := range cases {
		if got := ExchangeCode(c.assetType, c.code); got != c.want {
			t.Errorf("ExchangeCode(%s, %q) = %q, want %q", c.assetType, c.code, got, c.want)
		}
	}
}

func TestAdjustFlag(t *testing.T) {
	cases := []struct {
		adjust string
		want   string
	}{
		{"", ""},
		{"qfq", "2"},
		{"hfq", "3"},
		{"bogus", "2"},
	}
	for _, c := range cases {
		if got := AdjustFlag(c.adjust); got != c.want {
			t.Errorf("AdjustFlag(%q) = %q, want %q", c.adjust, got, c.want)
		}
	}
}
