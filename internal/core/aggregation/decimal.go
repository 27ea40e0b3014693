package aggregation

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// resultPlaces is the rounding applied to avg and stddev results.
const resultPlaces = 2

// Round rounds v half away from zero to places decimals.
// Going through decimal avoids the binary drift of math.Round(v*100)/100.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// ParseGroupValue turns a raw discrete group value into a float64 when it
// is numeric and falls back to the raw string otherwise.
func ParseGroupValue(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return raw
}
