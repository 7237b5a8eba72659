package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the rounding tolerance for money comparisons, in minor units.
const Epsilon int64 = 1

// minorUnitExp is the number of fractional digits in one major unit.
const minorUnitExp = 2

// Bounds of an amount in minor units.
var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ParseAmount converts a decimal string such as "12.34" into minor units.
// It rejects values with more fractional digits than the currency supports
// and values that do not fit in an int64.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(minorUnitExp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("invalid amount %q: at most %d decimal places", s, minorUnitExp)
	}
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a decimal string with two places.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -minorUnitExp).StringFixed(minorUnitExp)
}
