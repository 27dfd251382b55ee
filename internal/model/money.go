package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Subtotal sums cost * quantity across items.
// Decimal arithmetic keeps sums like 0.10 + 0.20 exact.
func Subtotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// FormatCost renders an amount in major units with two decimals and a dollar sign.
// Examples: 12.5 → "$12.50", 0 → "$0.00"
func FormatCost(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// ParseCost converts a decimal string (e.g. from a CLI flag) to an amount.
// Invalid or empty input yields zero, mirroring how the API treats missing costs.
// Examples: "99.00" → 99, "" → 0, "abc" → 0
func ParseCost(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
