// Package format provides Brazilian-locale formatting and parsing helpers for
// currency values and user-typed numbers.
package format

import (
	"math"
	"strings"

	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/shopspring/decimal"
)

// Currency returns a BRL currency string with thousands separators (e.g., "R$ 1.083,33"
// or "-R$ 50,00"). NaN and infinities render as "N/A".
func Currency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return constants.FallbackNotAvailable
	}
	rounded := decimal.NewFromFloat(amount).Round(constants.DecimalPlaces)
	formatted := constants.CurrencySymbol + " " + formatPositive(rounded.Abs())
	if rounded.IsNegative() {
		return "-" + formatted
	}
	return formatted
}

// NumericCurrency returns the amount with Brazilian separators and no currency symbol (e.g., "1.083,33").
func NumericCurrency(amount float64) string {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return constants.FallbackNotAvailable
	}
	rounded := decimal.NewFromFloat(amount).Round(constants.DecimalPlaces)
	if rounded.IsNegative() {
		return "-" + formatPositive(rounded.Abs())
	}
	return formatPositive(rounded)
}

func formatPositive(value decimal.Decimal) string {
	formatted := value.StringFixed(constants.DecimalPlaces)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte('.')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "," + decPart
}
