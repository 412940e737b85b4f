// Package rates defines the per-category fee schedule (the rate table) and the
// installment bundles offered for each category.
package rates

import (
	"fmt"
	"strings"

	"github.com/iwvelando/credit-simulator/pkg/validation"
)

// Entry holds the fee parameters of one product category. A nil AdminFeeRate
// marks a custom-rate category whose fee is typed in at calculation time.
type Entry struct {
	Name            string   `mapstructure:"name" yaml:"name" json:"name"`
	AdminFeeRate    *float64 `mapstructure:"adminFeeRate" yaml:"adminFeeRate" json:"adminFeeRate"`
	ReserveFundRate float64  `mapstructure:"reserveFundRate" yaml:"reserveFundRate" json:"reserveFundRate"`
	InsuranceRate   float64  `mapstructure:"insuranceRate" yaml:"insuranceRate" json:"insuranceRate"`
	Code            string   `mapstructure:"code" yaml:"code,omitempty" json:"code,omitempty"`
	AnnualUnit      bool     `mapstructure:"annualUnit" yaml:"annualUnit,omitempty" json:"annualUnit,omitempty"`
}

// CustomRate reports whether the admin fee must be supplied by the user.
func (e Entry) CustomRate() bool {
	return e.AdminFeeRate == nil
}

// Validate checks that every configured rate is finite and not negative.
func (e Entry) Validate() error {
	if e.AdminFeeRate != nil {
		if err := validation.ValidateRate("adminFeeRate", *e.AdminFeeRate); err != nil {
			return err
		}
	}
	if err := validation.ValidateRate("reserveFundRate", e.ReserveFundRate); err != nil {
		return err
	}
	return validation.ValidateRate("insuranceRate", e.InsuranceRate)
}

// Category is a keyed rate entry together with its installment bundles.
type Category struct {
	Key     string
	Entry   Entry
	Options []Option
}

// Table is an immutable, ordered rate table keyed by category.
type Table struct {
	categories []Category
	index      map[string]int
}

// NewTable validates categories and builds a table preserving their order.
func NewTable(categories []Category) (*Table, error) {
	table := &Table{
		categories: make([]Category, 0, len(categories)),
		index:      make(map[string]int, len(categories)),
	}
	for _, category := range categories {
		key := strings.TrimSpace(category.Key)
		if key == "" {
			return nil, validation.NewConfigurationError("category key must not be empty", nil)
		}
		if _, exists := table.index[key]; exists {
			return nil, validation.NewConfigurationError(fmt.Sprintf("duplicate category %q", key), nil)
		}
		if err := category.Entry.Validate(); err != nil {
			return nil, fmt.Errorf("category %s: %w", key, err)
		}
		category.Key = key
		category.Options = append([]Option(nil), category.Options...)
		table.index[key] = len(table.categories)
		table.categories = append(table.categories, category)
	}
	return table, nil
}

// Lookup returns the category stored under key.
func (t *Table) Lookup(key string) (Category, bool) {
	if t == nil {
		return Category{}, false
	}
	i, ok := t.index[key]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// Len returns the number of categories; a nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.categories)
}

// Keys returns the category keys in table order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.categories))
	for _, category := range t.categories {
		keys = append(keys, category.Key)
	}
	return keys
}

// Categories returns a copy of every category in table order.
func (t *Table) Categories() []Category {
	if t == nil {
		return nil
	}
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Rate returns a pointer to value, for building entries with a fixed admin fee.
func Rate(value float64) *float64 {
	return &value
}

// DefaultTable returns the built-in categories: three fixed-fee categories,
// one custom-rate category, and one custom-rate annual category.
func DefaultTable() *Table {
	standard := GenerateOptions([][]int{
		{12, 24, 36},
		{24, 36, 48},
		{36, 48, 60},
		{48, 60, 80},
		{60, 80, 110},
		{80, 110, 130},
		{130, 180, 210},
		{210, 280, 320},
	})

	table, err := NewTable([]Category{
		{Key: "auto", Entry: Entry{Name: "Automóvel", AdminFeeRate: Rate(0.30), Code: "030"}, Options: standard},
		{Key: "imovel", Entry: Entry{Name: "Imóvel", AdminFeeRate: Rate(0.31), Code: "031"}, Options: standard},
		{Key: "pesados", Entry: Entry{Name: "Pesados", AdminFeeRate: Rate(0.32), Code: "032"}, Options: standard},
		{Key: "taxa", Entry: Entry{Name: "Especial"}, Options: GenerateOptions([][]int{
			{12, 24, 36},
			{24, 48, 60},
			{48, 60, 92},
			{92, 120, 160},
		})},
		{Key: "anual", Entry: Entry{Name: "Anual", AnnualUnit: true}, Options: GenerateAnnualOptions([][]int{
			{2, 4, 6},
			{3, 4, 6},
			{4, 6, 8},
			{8, 10, 12},
			{10, 12, 15},
			{12, 15, 18},
		})},
	})
	if err != nil {
		panic(fmt.Sprintf("default rate table is invalid: %v", err))
	}
	return table
}
