package fetch

import (
	"strings"

	"github.com/ccyingfu/q-alpha/internal/domain"
)

// indexPrefix maps well-known China index codes to their exchange prefix.
var indexPrefix = map[string]string{
	// Shanghai exchange indexes.
	"000001": "sh", // SSE Composite
	"000300": "sh", // CSI 300
	"000905": "sh", // CSI 500
	"000016": "sh", // SSE 50
	// Shenzhen exchange indexes.
	"399001": "sz", // SZSE Component
	"399006": "sz", // ChiNext
	"399673": "sz", // ChiNext 50
}

// stockPrefix maps the leading digit of a China stock code to its exchange.
var stockPrefix = map[byte]string{
	'6': "sh",
	'0': "sz",
	'3': "sz",
	'8': "bj",
}

// ETFs without an explicit prefix default to the Shanghai exchange.
const etfDefaultPrefix = "sh"

// adjustFlags maps a price-adjustment mode to its wire value.
var adjustFlags = map[string]string{
	"":    "",  // unadjusted
	"qfq": "2", // forward adjusted
	"hfq": "3", // backward adjusted
}

// AdjustFlag returns the wire value for an adjustment mode, defaulting to
// forward adjusted for unknown modes.
func AdjustFlag(adjust string) string {
	if f, ok := adjustFlags[adjust]; ok {
		return f
	}
	return "2"
}

// ExchangeCode converts a bare asset code into the exchange-prefixed form
// the upstream expects, e.g. "000300" → "sh.000300". Codes that already
// carry a prefix pass through unchanged.
func ExchangeCode(assetType domain.AssetType, code string) string {
	if strings.Contains(code, ".") {
		return code
	}
	switch assetType {
	case domain.AssetIndex:
		prefix, ok := indexPrefix[code]
		if !ok {
			prefix = "sh"
		}
		return prefix + "." + code
	case domain.AssetStock:
		prefix := "sh"
		if len(code) > 0 {
			if p, ok := stockPrefix[code[0]]; ok {
				prefix = p
			}
		}
		return prefix + "." + code
	default:
		// ETFs, funds, bonds, commodities.
		return etfDefaultPrefix + "." + code
	}
}
