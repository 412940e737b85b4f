// Package installments turns a user's installment selection into a sorted,
// deduplicated list of positive installment counts.
package installments

import (
	"sort"
	"strings"

	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/format"
	"github.com/iwvelando/credit-simulator/pkg/validation"
)

// Mode identifies how installment counts were chosen.
type Mode string

const (
	ModeNone   Mode = ""
	ModePreset Mode = "preset"
	ModeManual Mode = "manual"
)

// Selection is the raw installment choice. Preset carries a bundle value such
// as "12x 24x 36x"; Manual carries up to five free-text entries.
type Selection struct {
	Mode   Mode     `json:"mode"`
	Preset string   `json:"preset,omitempty"`
	Manual []string `json:"manual,omitempty"`
}

// Validation messages returned by Resolve.
const (
	MessageSelectionRequired = "selection required"
	MessageNoValidCount      = "no valid installment count"
	MessageTooManyManual     = "too many manual installment entries"
	MessageUnknownOption     = "installment option not offered for this category"
)

const field = "installments"

// Resolve normalizes selection into ascending unique positive counts. For
// annual categories the preset token carries months and, when options are
// given, must match one of them.
func Resolve(selection Selection, options []rates.Option, annual bool) ([]int, error) {
	switch selection.Mode {
	case ModeManual:
		return resolveManual(selection.Manual)
	case ModePreset:
		return resolvePreset(selection.Preset, options, annual)
	}
	return nil, validation.NewValidationError(field, MessageSelectionRequired)
}

// CheckSelection rejects a missing selection without parsing any counts, so
// callers can report it before validating other inputs.
func CheckSelection(selection Selection) error {
	switch selection.Mode {
	case ModeManual:
		return nil
	case ModePreset:
		if strings.TrimSpace(selection.Preset) != "" {
			return nil
		}
	}
	return validation.NewValidationError(field, MessageSelectionRequired)
}

// ParseMode maps a user-facing mode name to a Mode; unknown names map to ModeNone.
func ParseMode(value string) Mode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ModePreset):
		return ModePreset
	case string(ModeManual):
		return ModeManual
	}
	return ModeNone
}

func resolveManual(entries []string) ([]int, error) {
	if len(entries) > constants.MaxManualInstallments {
		return nil, validation.NewValidationError(field, MessageTooManyManual)
	}
	counts := make([]int, 0, len(entries))
	for _, entry := range entries {
		if count, ok := format.ParseLeadingInt(entry); ok && count > 0 {
			counts = append(counts, count)
		}
	}
	return normalize(counts)
}

func resolvePreset(token string, options []rates.Option, annual bool) ([]int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validation.NewValidationError(field, MessageSelectionRequired)
	}
	if annual && len(options) > 0 && !offered(token, options) {
		return nil, validation.NewValidationError(field, MessageUnknownOption)
	}

	parts := strings.FieldsFunc(token, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	counts := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimRight(strings.ToLower(part), "x×")
		if count, ok := format.ParseLeadingInt(part); ok && count > 0 {
			counts = append(counts, count)
		}
	}
	return normalize(counts)
}

func offered(token string, options []rates.Option) bool {
	wanted := strings.Join(strings.Fields(token), " ")
	for _, option := range options {
		if strings.Join(strings.Fields(option.Value), " ") == wanted {
			return true
		}
	}
	return false
}

func normalize(counts []int) ([]int, error) {
	if len(counts) == 0 {
		return nil, validation.NewValidationError(field, MessageNoValidCount)
	}
	sort.Ints(counts)
	unique := counts[:1]
	for _, count := range counts[1:] {
		if count != unique[len(unique)-1] {
			unique = append(unique, count)
		}
	}
	return unique, nil
}
