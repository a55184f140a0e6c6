package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in integer minor currency units.
type Cents int64

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// Decimal converts the amount to a decimal in major units.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount in major units with two decimals, e.g. "5448.03".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Dollars renders the amount for display with a currency symbol and thousands
// separators, e.g. "$5,448.03" or "-$2.00".
func (c Cents) Dollars() string {
	s := c.Abs().String()
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if c < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// SumCents adds up a list of amounts.
func SumCents(amounts ...Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}
