package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary amount with financial precision. The engine
// works in whole currency units; Money keeps full precision and rounds only
// when formatting.
type Money struct {
	decimal.Decimal
}

// NewMoney creates a Money from a float64.
func NewMoney(value float64) Money {
	return Money{decimal.NewFromFloat(value)}
}

// NewMoneyFromDecimal wraps an existing decimal.Decimal.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{d}
}

// NewMoneyFromString parses a Money from a string.
func NewMoneyFromString(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// Zero returns a zero Money amount.
func Zero() Money {
	return Money{decimal.Zero}
}

// Round rounds to the nearest whole currency unit, halves away from zero.
func (m Money) Round() Money {
	return Money{m.Decimal.Round(0)}
}

// Add adds another Money amount.
func (m Money) Add(other Money) Money {
	return Money{m.Decimal.Add(other.Decimal)}
}

// Sub subtracts another Money amount.
func (m Money) Sub(other Money) Money {
	return Money{m.Decimal.Sub(other.Decimal)}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Decimal.IsNegative()
}

// Min returns the smaller of two Money amounts.
func Min(a, b Money) Money {
	if a.Decimal.LessThan(b.Decimal) {
		return a
	}
	return b
}

// Max returns the larger of two Money amounts.
func Max(a, b Money) Money {
	if a.Decimal.GreaterThan(b.Decimal) {
		return a
	}
	return b
}

// String returns the whole-unit representation.
func (m Money) String() string {
	return m.Round().Decimal.StringFixed(0)
}

// Format renders the amount as currency with thousands separators, e.g.
// "$1,234,567" or "-$500".
func (m Money) Format() string {
	s := m.String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
