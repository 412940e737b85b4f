// Package financing provides the installment arithmetic used by the simulation
// calculator: fee-adjusted totals, down-payment balances, and the reverse
// credit estimate from a desired installment.
package financing

import (
	"fmt"
	"math"

	"github.com/iwvelando/credit-simulator/pkg/constants"
)

// Fees holds the fractional surcharges applied to a credit value.
type Fees struct {
	Admin       float64
	ReserveFund float64
	Insurance   float64
}

// Total returns the sum of every fractional surcharge.
func (f Fees) Total() float64 {
	return f.Admin + f.ReserveFund + f.Insurance
}

// AdjustedTotal returns credit × (1 + admin + reserve fund) + credit × insurance.
// With zero reserve fund and insurance this is credit × (1 + admin).
func AdjustedTotal(credit float64, fees Fees) float64 {
	return credit*(1+fees.Admin+fees.ReserveFund) + credit*fees.Insurance
}

// Balance subtracts the down payment from total when the down payment is
// positive. The result may be zero or negative.
func Balance(total, downPayment float64) float64 {
	if downPayment > 0 {
		return total - downPayment
	}
	return total
}

// InstallmentValue splits balance into count equal installments.
func InstallmentValue(balance float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	return balance / float64(count)
}

// CreditFromInstallment estimates the credit value that a desired installment
// pays off over count installments.
func CreditFromInstallment(installment float64, count int, fees Fees) float64 {
	divisor := 1 + fees.Total()
	if divisor == 0 || count <= 0 {
		return 0
	}
	return installment * float64(count) / divisor
}

// Variation is an alternative installment suggested around a desired value.
type Variation struct {
	Label       string
	Count       int
	Installment float64
	Credit      float64
}

// InstallmentVariations returns the smaller and larger installment suggestions
// for a desired installment together with the credit each one would buy.
func InstallmentVariations(installment float64, count int, fees Fees) []Variation {
	percents := []float64{constants.LowerInstallmentVariation, constants.HigherInstallmentVariation}
	variations := make([]Variation, 0, len(percents))
	for _, percent := range percents {
		varied := installment * (1 + percent)
		variations = append(variations, Variation{
			Label:       variationLabel(percent),
			Count:       count,
			Installment: varied,
			Credit:      CreditFromInstallment(varied, count, fees),
		})
	}
	return variations
}

func variationLabel(percent float64) string {
	magnitude := int(math.Round(math.Abs(percent) * constants.PercentageMultiplier))
	if percent < 0 {
		return fmt.Sprintf("Parcela %d%% Menor", magnitude)
	}
	return fmt.Sprintf("Parcela %d%% Maior", magnitude)
}
