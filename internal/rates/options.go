package rates

import (
	"strconv"
	"strings"

	"github.com/iwvelando/credit-simulator/pkg/constants"
)

// Option is a displayable installment bundle. Value encodes the counts as
// space-joined tokens such as "12x 24x 36x"; annual bundles encode months.
type Option struct {
	Label string `mapstructure:"label" yaml:"label" json:"label"`
	Value string `mapstructure:"value" yaml:"value" json:"value"`
}

// GenerateOptions builds bundles whose label reads "12x, 24x, 36x" and whose
// value reads "12x 24x 36x".
func GenerateOptions(bundles [][]int) []Option {
	options := make([]Option, 0, len(bundles))
	for _, counts := range bundles {
		tokens := make([]string, len(counts))
		for i, count := range counts {
			tokens[i] = strconv.Itoa(count) + "x"
		}
		options = append(options, Option{
			Label: strings.Join(tokens, ", "),
			Value: strings.Join(tokens, " "),
		})
	}
	return options
}

// GenerateAnnualOptions builds bundles labelled in years ("2 anos, 4 anos")
// whose value carries the equivalent month counts ("24x 48x").
func GenerateAnnualOptions(bundles [][]int) []Option {
	options := make([]Option, 0, len(bundles))
	for _, years := range bundles {
		labels := make([]string, len(years))
		values := make([]string, len(years))
		for i, year := range years {
			labels[i] = strconv.Itoa(year) + " anos"
			values[i] = strconv.Itoa(year*constants.MonthsPerYear) + "x"
		}
		options = append(options, Option{
			Label: strings.Join(labels, ", "),
			Value: strings.Join(values, " "),
		})
	}
	return options
}
