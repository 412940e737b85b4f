// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/credit-simulator/internal/simulation"
)

// FindPlan finds an installment plan by count in the result.
// Returns a pointer to the plan if found, nil otherwise.
func FindPlan(result simulation.Result, count int) *simulation.Plan {
	for i := range result.InstallmentPlans {
		if result.InstallmentPlans[i].Count == count {
			return &result.InstallmentPlans[i]
		}
	}
	return nil
}

// FindVariation finds a suggested variation by label.
func FindVariation(result simulation.Result, label string) *simulation.Variation {
	for i := range result.Variations {
		if result.Variations[i].Label == label {
			return &result.Variations[i]
		}
	}
	return nil
}
