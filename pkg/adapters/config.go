// Package adapters provides adapter implementations between different package interfaces.
package adapters

import (
	"fmt"

	"github.com/iwvelando/credit-simulator/internal/config"
	"github.com/iwvelando/credit-simulator/internal/rates"
)

// CategoryToRateCategory converts one configured category into a rate-table
// category, generating its installment options from the bundles.
func CategoryToRateCategory(category config.CategoryConfig) rates.Category {
	var options []rates.Option
	if category.AnnualUnit {
		options = rates.GenerateAnnualOptions(category.Bundles)
	} else {
		options = rates.GenerateOptions(category.Bundles)
	}

	var adminFee *float64
	if category.AdminFeeRate != nil {
		adminFee = rates.Rate(*category.AdminFeeRate)
	}

	return rates.Category{
		Key: category.Key,
		Entry: rates.Entry{
			Name:            category.Name,
			AdminFeeRate:    adminFee,
			ReserveFundRate: category.ReserveFundRate,
			InsuranceRate:   category.InsuranceRate,
			Code:            category.Code,
			AnnualUnit:      category.AnnualUnit,
		},
		Options: options,
	}
}

// TableFromConfig builds the rate table from configured categories. An empty
// list yields the built-in table.
func TableFromConfig(categories []config.CategoryConfig) (*rates.Table, error) {
	if len(categories) == 0 {
		return rates.DefaultTable(), nil
	}

	converted := make([]rates.Category, 0, len(categories))
	for _, category := range categories {
		converted = append(converted, CategoryToRateCategory(category))
	}

	table, err := rates.NewTable(converted)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate table from configuration: %w", err)
	}
	return table, nil
}
