// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal values rounded to cents on entry. Sums are
// exact, so period totals never drift the way float accumulation does.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user input to a decimal rounded to two places.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. When
// both appear, the rightmost one is the decimal separator and the other is
// treated as a thousands separator:
//
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("1,234.56") -> 1234.56
//	ParseAmount("12.345")   -> 12.35 (half away from zero)
//
// Negative values are accepted; empty or non-numeric input is a validation
// error.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d.Round(2), nil
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
