package format

import (
	"math"
	"testing"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected string
	}{
		{"Installment example", 13000.0 / 12, "R$ 1.083,33"},
		{"Small value", 5.5, "R$ 5,50"},
		{"Zero", 0, "R$ 0,00"},
		{"Exactly thousand", 1000, "R$ 1.000,00"},
		{"Millions", 1234567.891, "R$ 1.234.567,89"},
		{"Rounds half away from zero", 2.345, "R$ 2,35"},
		{"Negative", -50, "-R$ 50,00"},
		{"Negative rounding to zero", -0.001, "R$ 0,00"},
		{"Positive infinity", math.Inf(1), "N/A"},
		{"Negative infinity", math.Inf(-1), "N/A"},
		{"NaN", math.NaN(), "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Currency(tt.amount); got != tt.expected {
				t.Errorf("Currency(%v) = %q, expected %q", tt.amount, got, tt.expected)
			}
		})
	}
}

func TestNumericCurrency(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected string
	}{
		{"Thousands", 10000, "10.000,00"},
		{"Negative", -1083.333, "-1.083,33"},
		{"Below thousand", 999.999, "1.000,00"},
		{"Infinity", math.Inf(1), "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NumericCurrency(tt.amount); got != tt.expected {
				t.Errorf("NumericCurrency(%v) = %q, expected %q", tt.amount, got, tt.expected)
			}
		})
	}
}
