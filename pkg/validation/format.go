package validation

import (
	"fmt"
	"math"

	"github.com/iwvelando/credit-simulator/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case constants.OutputFormatMessage, constants.OutputFormatPretty, constants.OutputFormatCSV:
		return nil
	}
	return fmt.Errorf("expected output format of %s, %s or %s, got %s",
		constants.OutputFormatMessage, constants.OutputFormatPretty, constants.OutputFormatCSV, format)
}

// ValidateRate checks that a fractional rate is finite and not negative.
func ValidateRate(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewConfigurationError(fmt.Sprintf("rate %s is not a finite number", name), nil)
	}
	if value < 0 {
		return NewConfigurationError(fmt.Sprintf("rate %s must not be negative, got %v", name, value), nil)
	}
	return nil
}
