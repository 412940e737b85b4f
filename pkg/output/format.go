// Package output provides utilities for formatting and displaying simulation results.
package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/iwvelando/credit-simulator/internal/simulation"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat writes a human-readable rather than machine-readable table.
func PrettyFormat(w io.Writer, result simulation.Result) {
	p := message.NewPrinter(language.BrazilianPortuguese)
	unit := "meses"
	if result.AnnualUnit {
		unit = "anos"
	}

	fmt.Fprintf(w, "--- Simulação %s %s ---\n", result.CategoryName, result.FeeCodeLabel)
	fmt.Fprintf(w, "Crédito: %s\n", result.CreditValueDisplay)
	if result.DownPaymentDisplay != "" {
		fmt.Fprintf(w, "Entrada: %s\n", result.DownPaymentDisplay)
	}
	_, _ = p.Fprintf(w, "Taxa total: %.2f%%\n", mathutil.FractionToPercent(result.EffectiveFeeRate))

	fmt.Fprintf(w, "Parcelas | Valor         | Crédito estimado\n")
	fmt.Fprintf(w, "________ | _____________ | ________________\n")
	for _, plan := range sortedPlans(result.InstallmentPlans) {
		label := fmt.Sprintf("%dx", plan.Count)
		if result.AnnualUnit {
			label = fmt.Sprintf("%d %s", plan.Count/constants.MonthsPerYear, unit)
		}
		fmt.Fprintf(w, "%-8s | %-13s | %s\n", label, plan.ValueDisplay, plan.EstimatedCreditDisplay)
	}

	if len(result.Variations) > 0 {
		fmt.Fprintf(w, "\nVariações\n")
		for _, variation := range result.Variations {
			fmt.Fprintf(w, "%s | %s | %s\n", variation.Label, variation.InstallmentDisplay, variation.EstimatedCreditDisplay)
		}
	}
}

// CsvFormat writes the installment plans in comma-separated value format.
func CsvFormat(w io.Writer, result simulation.Result) {
	fmt.Fprintf(w, `"category","installments","value","estimated credit"`)
	fmt.Fprintf(w, "\n")
	for _, plan := range sortedPlans(result.InstallmentPlans) {
		fmt.Fprintf(w, `"%s","%d","%.2f"`, result.CategoryKey, plan.Count, mathutil.Round(plan.Value))
		if plan.EstimatedCreditDisplay != "" {
			fmt.Fprintf(w, `,"%.2f"`, mathutil.Round(plan.EstimatedCredit))
		} else {
			fmt.Fprintf(w, `,""`)
		}
		fmt.Fprintf(w, "\n")
	}
}

func sortedPlans(plans []simulation.Plan) []simulation.Plan {
	sorted := append([]simulation.Plan(nil), plans...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count < sorted[j].Count })
	return sorted
}
