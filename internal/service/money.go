package service

import (
	"github.com/shopspring/decimal"
)

// amountTolerance is the largest difference accepted between a total and its lines
var amountTolerance = decimal.RequireFromString("0.01")

func parseMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, invalid(field, "is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid(field, "must be a decimal number")
	}
	if d.IsNegative() {
		return decimal.Zero, invalid(field, "must not be negative")
	}
	return d, nil
}

// withinTolerance reports whether a and b differ by less than one cent
func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(amountTolerance)
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
