package numutil

import "math"

// EqualWithin reports whether two floats are equal within an absolute
// tolerance. Used when comparing imported values against stored ones, which
// may carry a different but equal-value representation.
func EqualWithin(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// Round2 rounds to two decimal places, the display precision for cm/kg/USD.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
