package util

import (
	"strconv"
	"strings"
)

// SafeAtoi parses s as an int, returning 0 on any failure. Raw retailer
// records routinely omit or mangle numeric fields; a missing number is not
// an error.
func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

// SafeParseFloat parses s as a float64, returning 0 on any failure.
// Currency markers and thousands separators are stripped first.
func SafeParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
