// Package core holds the transaction model, money and date handling, and the
// filter, sort and aggregate logic behind lists and dashboards.
//
// Amounts are kept as integer cents and parsed through an exact decimal
// representation, so sums never drift the way float currency totals do.
package core

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const currencyPrefix = "R$ "

// MaxAmountCents bounds a single amount at one hundred billion. Summing close
// to a million maximal amounts still fits in int64 cents.
const MaxAmountCents = 10_000_000_000_000

var maxAmount = decimal.New(MaxAmountCents, -2)

// ParseAmount converts a decimal string to Money with half-up rounding to cents.
//
// It accepts a dot (12.34) or a comma (12,34) as decimal separator; when both
// appear the input is read as pt-BR grouping (1.234,56). Signs, exponents and
// anything that is not a digit are rejected.
//
// Examples:
//
//	ParseAmount("12.34")    -> 1234 cents
//	ParseAmount("1.234,56") -> 123456 cents
//	ParseAmount("12.345")   -> 1235 cents (half-up)
//	ParseAmount("-1")       -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")

	seps := 0
	for _, r := range s {
		switch {
		case r == '.':
			seps++
		case r < '0' || r > '9':
			return Money{}, ErrInvalidAmount
		}
	}
	if seps > 1 || s == "." {
		return Money{}, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half-up to two fractional digits.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	d = d.Round(2)
	if d.IsNegative() || d.GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: d.Shift(2).IntPart()}, nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders m with exactly two fractional digits, e.g. "100.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Format renders m in the display format, e.g. "R$ 1.234,56".
func (m Money) Format() string {
	sign := ""
	abs := uint64(m.Cents)
	if m.Cents < 0 {
		sign = "-"
		abs = uint64(-m.Cents) // MinInt64 wraps to its own magnitude
	}
	units := strings.ReplaceAll(humanize.Comma(int64(abs/100)), ",", ".")
	return fmt.Sprintf("%s%s%s,%02d", currencyPrefix, sign, units, abs%100)
}

// MarshalJSON writes m as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
