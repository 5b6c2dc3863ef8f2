package notification

import "github.com/shopspring/decimal"

// CentsFromDecimal converts a major-unit amount to integer centavos, rounding half away from zero
func CentsFromDecimal(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// CentsToDecimal converts integer centavos to a major-unit amount
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
