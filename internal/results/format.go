package results

import (
	"math"
	"strconv"
	"strings"
)

// ExtractNumber converts a URL parameter to an integer. Anything that does not
// parse as a number, or falls outside the int32 range, yields 0; negative and
// zero values are returned as is and fractions are truncated toward zero.
func ExtractNumber(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := strconv.ParseInt(value, 10, 32); err == nil {
		return int(n)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

// Round rounds to three decimal places.
func Round(x float64) float64 {
	return math.Round(x*1000) / 1000
}
