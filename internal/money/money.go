// Package money renders minor-unit amounts (kobo) as naira strings.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

const Symbol = "₦"

// Format renders minor units with thousands separators, e.g. 123450 -> "1,234.50".
// Whole amounts drop the fraction: 100000 -> "1,000".
func Format(minor int64) string {
	d := decimal.New(minor, -2)
	s := d.StringFixed(2)
	if d.Equal(d.Truncate(0)) {
		s = d.StringFixed(0)
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// WithSymbol prefixes Format with the naira sign.
func WithSymbol(minor int64) string {
	return Symbol + Format(minor)
}

// ToMajor converts minor units to a decimal naira value for JSON responses.
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
