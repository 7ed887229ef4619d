package catalog

import "fmt"

// Money is a price in minor units (cents). All discount math happens on
// integers so repeated derivations never accumulate rounding drift.
type Money int64

// Cents returns the raw minor-unit value.
func (m Money) Cents() int64 { return int64(m) }

// Float returns the major-unit value for display and ratio math.
func (m Money) Float() float64 { return float64(m) / 100 }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// FromFloat converts a major-unit amount, rounding half away from zero.
func FromFloat(v float64) Money {
	if v < 0 {
		return Money(v*100 - 0.5)
	}
	return Money(v*100 + 0.5)
}

// WithinTolerance reports whether m is within frac (e.g. 0.05) of ref.
// A zero reference only matches an exactly zero value.
func (m Money) WithinTolerance(ref Money, frac float64) bool {
	if ref == 0 {
		return m == 0
	}
	diff := int64(m) - int64(ref)
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) <= frac*float64(ref)
}
