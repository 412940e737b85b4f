package installments

import (
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/pkg/validation"
)

func TestResolve(t *testing.T) {
	annualOptions := rates.GenerateAnnualOptions([][]int{{2, 4, 6}, {3, 4, 6}})

	tests := []struct {
		name      string
		selection Selection
		options   []rates.Option
		annual    bool
		want      []int
		wantMsg   string
	}{
		{
			name:      "manual filters invalid entries",
			selection: Selection{Mode: ModeManual, Manual: []string{"12", "0", "-5", "abc", "24"}},
			want:      []int{12, 24},
		},
		{
			name:      "manual dedupes and sorts",
			selection: Selection{Mode: ModeManual, Manual: []string{"48", "12x", "24", "12"}},
			want:      []int{12, 24, 48},
		},
		{
			name:      "manual truncates fractions",
			selection: Selection{Mode: ModeManual, Manual: []string{"12.9"}},
			want:      []int{12},
		},
		{
			name:      "manual with nothing valid",
			selection: Selection{Mode: ModeManual, Manual: []string{"", "0", "x"}},
			wantMsg:   MessageNoValidCount,
		},
		{
			name:      "manual with too many entries",
			selection: Selection{Mode: ModeManual, Manual: []string{"1", "2", "3", "4", "5", "6"}},
			wantMsg:   MessageTooManyManual,
		},
		{
			name:      "preset bundle",
			selection: Selection{Mode: ModePreset, Preset: "36x 12x 24x"},
			want:      []int{12, 24, 36},
		},
		{
			name:      "preset with commas and multiplication sign",
			selection: Selection{Mode: ModePreset, Preset: "12×, 24×, 24×"},
			want:      []int{12, 24},
		},
		{
			name:      "annual preset keeps months",
			selection: Selection{Mode: ModePreset, Preset: "24x 48x 72x"},
			options:   annualOptions,
			annual:    true,
			want:      []int{24, 48, 72},
		},
		{
			name:      "annual preset not offered",
			selection: Selection{Mode: ModePreset, Preset: "24x 36x"},
			options:   annualOptions,
			annual:    true,
			wantMsg:   MessageUnknownOption,
		},
		{
			name:      "annual preset without options is parsed",
			selection: Selection{Mode: ModePreset, Preset: "24x 36x"},
			annual:    true,
			want:      []int{24, 36},
		},
		{
			name:      "preset empty token",
			selection: Selection{Mode: ModePreset, Preset: "  "},
			wantMsg:   MessageSelectionRequired,
		},
		{
			name:      "preset with nothing valid",
			selection: Selection{Mode: ModePreset, Preset: "0x abc"},
			wantMsg:   MessageNoValidCount,
		},
		{
			name:      "no mode",
			selection: Selection{},
			wantMsg:   MessageSelectionRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.selection, tt.options, tt.annual)
			if tt.wantMsg != "" {
				var vErr *validation.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if vErr.Message != tt.wantMsg {
					t.Errorf("message = %q, want %q", vErr.Message, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	first, err := Resolve(Selection{Mode: ModeManual, Manual: []string{"60", "12", "36", "12"}}, nil, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	manual := make([]string, len(first))
	for i, count := range first {
		manual[i] = strconv.Itoa(count)
	}
	second, err := Resolve(Selection{Mode: ModeManual, Manual: manual}, nil, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve is not idempotent: %v then %v", first, second)
	}
}

func TestResolveOutputInvariants(t *testing.T) {
	selections := []Selection{
		{Mode: ModeManual, Manual: []string{"5", "3", "5", "1", "-1"}},
		{Mode: ModePreset, Preset: "210x 130x 180x 130x"},
	}
	for _, selection := range selections {
		counts, err := Resolve(selection, nil, false)
		if err != nil {
			t.Fatalf("Resolve(%+v) error = %v", selection, err)
		}
		for i, count := range counts {
			if count <= 0 {
				t.Errorf("non-positive count %d in %v", count, counts)
			}
			if i > 0 && counts[i-1] >= count {
				t.Errorf("counts not strictly ascending: %v", counts)
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"preset", ModePreset},
		{" Manual ", ModeManual},
		{"", ModeNone},
		{"other", ModeNone},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckSelection(t *testing.T) {
	tests := []struct {
		name      string
		selection Selection
		wantErr   bool
	}{
		{"no mode", Selection{}, true},
		{"blank preset", Selection{Mode: ModePreset, Preset: "  "}, true},
		{"preset", Selection{Mode: ModePreset, Preset: "12x 24x"}, false},
		{"manual without usable entries", Selection{Mode: ModeManual, Manual: []string{"abc"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSelection(tt.selection)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSelection() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !validation.IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}
