package rates

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/iwvelando/credit-simulator/pkg/format"
	"github.com/iwvelando/credit-simulator/pkg/validation"
)

// Suffixes of the flat simulation variables map ("auto_taxaAdm", "auto_nome", ...).
const (
	VariableAdminFee    = "taxaAdm"
	VariableName        = "nome"
	VariableCode        = "cod"
	VariableReserveFund = "fundoReserva"
	VariableInsurance   = "seguro"
	VariableAnnual      = "isAnual"
)

// FromVariables overlays a flat simulation variables map onto base. Keys are
// "<category>_<field>"; categories absent from base are appended in key order
// without installment bundles. A null admin fee turns the category into a
// custom-rate category.
func FromVariables(vars map[string]any, base *Table) (*Table, error) {
	categories := base.Categories()
	index := make(map[string]int, len(categories))
	for i, category := range categories {
		index[category.Key] = i
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		separator := strings.LastIndex(key, "_")
		if separator <= 0 || separator == len(key)-1 {
			return nil, validation.NewValidationError(key, "variable name must look like <category>_<field>")
		}
		categoryKey, field := key[:separator], key[separator+1:]

		i, ok := index[categoryKey]
		if !ok {
			categories = append(categories, Category{Key: categoryKey, Entry: Entry{Name: categoryKey}})
			i = len(categories) - 1
			index[categoryKey] = i
		}
		if err := applyVariable(&categories[i].Entry, field, vars[key]); err != nil {
			return nil, fmt.Errorf("variable %s: %w", key, err)
		}
	}

	return NewTable(categories)
}

// Variables flattens the table into the simulation variables map understood
// by FromVariables.
func (t *Table) Variables() map[string]any {
	vars := make(map[string]any, t.Len()*6)
	for _, category := range t.Categories() {
		prefix := category.Key + "_"
		entry := category.Entry
		vars[prefix+VariableName] = entry.Name
		if entry.AdminFeeRate != nil {
			vars[prefix+VariableAdminFee] = *entry.AdminFeeRate
		} else {
			vars[prefix+VariableAdminFee] = nil
		}
		if entry.Code != "" {
			vars[prefix+VariableCode] = entry.Code
		} else {
			vars[prefix+VariableCode] = nil
		}
		vars[prefix+VariableReserveFund] = entry.ReserveFundRate
		vars[prefix+VariableInsurance] = entry.InsuranceRate
		vars[prefix+VariableAnnual] = entry.AnnualUnit
	}
	return vars
}

func applyVariable(entry *Entry, field string, value any) error {
	switch field {
	case VariableName:
		name, err := stringValue(value)
		if err != nil {
			return err
		}
		entry.Name = name
	case VariableCode:
		code, err := stringValue(value)
		if err != nil {
			return err
		}
		entry.Code = code
	case VariableAdminFee:
		if value == nil {
			entry.AdminFeeRate = nil
			return nil
		}
		rate, err := numberValue(value)
		if err != nil {
			return err
		}
		entry.AdminFeeRate = &rate
	case VariableReserveFund:
		rate, err := numberValue(value)
		if err != nil {
			return err
		}
		entry.ReserveFundRate = rate
	case VariableInsurance:
		rate, err := numberValue(value)
		if err != nil {
			return err
		}
		entry.InsuranceRate = rate
	case VariableAnnual:
		annual, err := boolValue(value)
		if err != nil {
			return err
		}
		entry.AnnualUnit = annual
	default:
		return validation.NewValidationError(field, "unknown simulation variable")
	}
	return nil
}

// stringValue accepts text only. Numbers are rejected so a code such as "030"
// cannot lose its leading zeros.
func stringValue(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	}
	return "", validation.NewValidationError("", fmt.Sprintf("expected text, got %T", value))
}

func numberValue(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, validation.NewValidationError("", fmt.Sprintf("invalid number %q", v.String()))
		}
		return parsed, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		parsed, ok := format.ParseLeadingFloat(v)
		if !ok {
			return 0, validation.NewValidationError("", fmt.Sprintf("invalid number %q", v))
		}
		return parsed, nil
	}
	return 0, validation.NewValidationError("", fmt.Sprintf("expected a number, got %T", value))
}

func boolValue(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, validation.NewValidationError("", fmt.Sprintf("invalid boolean %q", v))
		}
		return parsed, nil
	}
	return false, validation.NewValidationError("", fmt.Sprintf("expected a boolean, got %T", value))
}
