// Package core provides amount parsing for snapshot cells.
//
// Amounts arrive as quoted, comma-grouped decimal strings ("1,234.5").
// They are kept as decimal.Decimal so sums reconcile exactly across
// drill-down levels.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountReplacer = strings.NewReplacer(",", "", `"`, "", " ", "")

// ParseAmount strips thousands separators and quotes and parses the rest
// as a signed decimal.
//
// Examples:
//
//	ParseAmount(`"1,234"`)  -> 1234, nil
//	ParseAmount("-500.25")  -> -500.25, nil
//	ParseAmount("n/a")      -> 0, error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// AmountOrZero parses s and maps any failure to zero, which the loader
// then drops.
func AmountOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Sum adds amounts without losing precision.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
