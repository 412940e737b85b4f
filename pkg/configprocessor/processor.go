// Package configprocessor provides shared configuration processing utilities.
package configprocessor

import (
	"fmt"
	"strings"
)

// CategoryInfo represents rate-table category configuration information
type CategoryInfo struct {
	Key        string
	Name       string
	CustomRate bool
	Code       string
	AnnualUnit bool
	Bundles    [][]int
}

// Features represents the deployment switches that interact with each other
type Features struct {
	AsyncSend       bool
	TelegramEnabled bool
	StorageDriver   string
}

// Processor handles configuration processing and validation
type Processor struct{}

// NewProcessor creates a new configuration processor
func NewProcessor() *Processor {
	return &Processor{}
}

// ValidateConfiguration validates the configuration and returns warnings.
// Hard errors are reported when the rate table is built; warnings flag
// settings that load but are probably not what the operator meant.
func (p *Processor) ValidateConfiguration(categories []CategoryInfo, features Features) []string {
	var warnings []string

	if len(categories) == 0 {
		warnings = append(warnings, "No categories configured; the built-in rate table will be used")
	}

	for _, category := range categories {
		label := category.Key
		if category.Name != "" {
			label = fmt.Sprintf("%s (%s)", category.Key, category.Name)
		}

		if len(category.Bundles) == 0 {
			warnings = append(warnings, "Category '"+label+"' has no installment bundles; only manual entry will work")
		}
		if category.CustomRate && category.Code != "" {
			warnings = append(warnings, "Category '"+label+"' uses a custom fee but sets code '"+category.Code+"'; the code is derived from the fee")
		}
		if !category.CustomRate && strings.TrimSpace(category.Code) == "" {
			warnings = append(warnings, "Category '"+label+"' has no code; the message will omit it")
		}

		for _, bundle := range category.Bundles {
			for _, count := range bundle {
				if count <= 0 {
					warnings = append(warnings, fmt.Sprintf("Category '%s' bundle contains non-positive entry %d", label, count))
					continue
				}
				if !category.AnnualUnit && count > 420 {
					warnings = append(warnings, fmt.Sprintf("Category '%s' bundle offers %d installments, over 35 years", label, count))
				}
			}
		}
	}

	if features.AsyncSend && !features.TelegramEnabled {
		warnings = append(warnings, "Async send is enabled but Telegram is disabled; queued messages will only be logged")
	}
	if features.StorageDriver == "memory" {
		warnings = append(warnings, "Storage driver is memory; simulations and settings are lost on restart")
	}

	if len(warnings) == 0 {
		return nil
	}
	return warnings
}
