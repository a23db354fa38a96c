package output

import (
	"math"
	"strconv"
	"strings"
)

// RoundFloat rounds a float to six decimal places.
func RoundFloat(f float64) float64 {
	return RoundTo(f, 6)
}

// RoundTo rounds a float to the given number of decimal places.
func RoundTo(f float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(f*multiplier) / multiplier
}

// FormatFloat formats a float with at most six decimals and no trailing zeros.
func FormatFloat(f float64) string {
	str := strconv.FormatFloat(RoundFloat(f), 'f', 6, 64)
	str = strings.TrimRight(str, "0")
	return strings.TrimRight(str, ".")
}

// FormatRelevance renders a similarity with exactly two decimals.
func FormatRelevance(f float64) string {
	return strconv.FormatFloat(RoundTo(f, 2), 'f', 2, 64)
}
