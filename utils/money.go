package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount the way the storefront and gateway expect:
// two decimals, dot separator, no grouping.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ParseAmount reads a posted amount, rejecting negatives and anything with
// more than two decimals.
func ParseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid amount %q: negative", value)
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: too many decimals", value)
	}
	return amount, nil
}
