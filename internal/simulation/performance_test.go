package simulation

import (
	"testing"
	"time"

	"github.com/iwvelando/credit-simulator/internal/rates"
)

// TestPerformance runs every preset bundle of every default category and
// checks the batch stays well under a second.
func TestPerformance(t *testing.T) {
	table := rates.DefaultTable()
	calculator := Calculator{ReverseCalculation: true}

	start := time.Now()
	runs := 0
	for _, category := range table.Categories() {
		for _, option := range category.Options {
			input := Input{
				CategoryKey:      category.Key,
				CreditValueRaw:   "150.000,00",
				CustomFeePercent: "22",
				Selection:        preset(option.Value),
			}
			if _, err := calculator.Calculate(table, input); err != nil {
				t.Fatalf("Calculate(%s, %q) error = %v", category.Key, option.Value, err)
			}
			if _, err := calculator.CalculateByInstallment(table, input); err != nil {
				t.Fatalf("CalculateByInstallment(%s, %q) error = %v", category.Key, option.Value, err)
			}
			runs += 2
		}
	}
	elapsed := time.Since(start)

	t.Logf("Performance metrics:")
	t.Logf("  Simulations: %d", runs)
	t.Logf("  Total time: %v", elapsed)

	if elapsed > time.Second {
		t.Errorf("Total processing time %v exceeds 1 second threshold", elapsed)
	}
}

func BenchmarkCalculate(b *testing.B) {
	table := rates.DefaultTable()
	input := Input{
		CategoryKey:    "imovel",
		CreditValueRaw: "R$ 350.000,00",
		DownPaymentRaw: "35.000",
		Selection:      preset("130x 180x 210x"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Calculate(table, input); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCalculateByInstallment(b *testing.B) {
	table := rates.DefaultTable()
	calculator := Calculator{ReverseCalculation: true}
	input := Input{
		CategoryKey:    "auto",
		CreditValueRaw: "1.500,00",
		Selection:      manual("80"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := calculator.CalculateByInstallment(table, input); err != nil {
			b.Fatal(err)
		}
	}
}
