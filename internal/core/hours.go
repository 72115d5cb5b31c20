// Package core holds the care-hours domain types.
//
// This file contains the Hours quantity used for all hour arithmetic. Hours
// wraps a decimal so repeated accumulation over months and years does not
// compound binary floating point error; rounding is a display concern only.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Hours is a non-integral quantity of care hours.
type Hours struct {
	d decimal.Decimal
}

// daysPerWeek converts weekly hours into a per-day rate.
var daysPerWeek = decimal.NewFromInt(7)

// ZeroHours is the additive identity.
func ZeroHours() Hours {
	return Hours{d: decimal.Zero}
}

// HoursFromFloat converts a float, e.g. from a form field, into Hours.
func HoursFromFloat(f float64) Hours {
	return Hours{d: decimal.NewFromFloat(f)}
}

// HoursFromInt converts whole hours.
func HoursFromInt(n int64) Hours {
	return Hours{d: decimal.NewFromInt(n)}
}

// ParseHours parses a decimal string such as "7.5" or "7,5".
//
// Blank input is zero hours; negative values are rejected.
func ParseHours(s string) (Hours, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ZeroHours(), nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Hours{}, ErrInvalidHours
	}
	if d.IsNegative() {
		return Hours{}, ErrInvalidHours
	}
	return Hours{d: d}, nil
}

// Add returns h + o.
func (h Hours) Add(o Hours) Hours {
	return Hours{d: h.d.Add(o.d)}
}

// Sub returns h - o.
func (h Hours) Sub(o Hours) Hours {
	return Hours{d: h.d.Sub(o.d)}
}

// ForDays pro-rates a weekly figure over n days: h × n / 7.
func (h Hours) ForDays(n int) Hours {
	if n <= 0 {
		return ZeroHours()
	}
	return Hours{d: h.d.Mul(decimal.NewFromInt(int64(n))).Div(daysPerWeek)}
}

// IsZero reports whether h is exactly zero.
func (h Hours) IsZero() bool {
	return h.d.IsZero()
}

// IsNegative reports whether h is below zero.
func (h Hours) IsNegative() bool {
	return h.d.IsNegative()
}

// Equal compares exactly.
func (h Hours) Equal(o Hours) bool {
	return h.d.Equal(o.d)
}

// Float64 returns the value for display and JSON output.
func (h Hours) Float64() float64 {
	f, _ := h.d.Float64()
	return f
}

// Round returns h rounded half away from zero to places decimals.
func (h Hours) Round(places int32) Hours {
	return Hours{d: h.d.Round(places)}
}

// String formats h with two decimals.
func (h Hours) String() string {
	return h.d.StringFixed(2)
}

// Decimal exposes the underlying value for storage adapters.
func (h Hours) Decimal() decimal.Decimal {
	return h.d
}

// SumHours adds all values.
func SumHours(hs ...Hours) Hours {
	total := ZeroHours()
	for _, h := range hs {
		total = total.Add(h)
	}
	return total
}
