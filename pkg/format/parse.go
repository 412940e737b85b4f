package format

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
)

// ParseLocalizedDecimal parses masked Brazilian input such as "10.000,50" or
// "R$ 1.500". Everything except digits and the first comma is discarded, so
// signs are ignored and the result is never negative. ok is false when the
// input carries no number at all.
func ParseLocalizedDecimal(value string) (float64, bool) {
	var builder strings.Builder
	seenComma := false
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == ',':
			if seenComma {
				// a second decimal separator ends the number
				return parseCleaned(builder.String())
			}
			seenComma = true
			builder.WriteByte('.')
		}
	}
	return parseCleaned(builder.String())
}

func parseCleaned(cleaned string) (float64, bool) {
	if cleaned == "" || cleaned == "." {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseLeadingFloat parses the numeric prefix of value, accepting a comma as
// decimal separator ("2,5%" -> 2.5). ok is false when no prefix is numeric.
func ParseLeadingFloat(value string) (float64, bool) {
	trimmed := strings.Replace(strings.TrimSpace(value), ",", ".", 1)
	match := leadingFloat.FindString(trimmed)
	if match == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// ParseLeadingInt parses the integer prefix of value ("12x" -> 12, "12.9" -> 12).
func ParseLeadingInt(value string) (int, bool) {
	match := leadingInt.FindString(strings.TrimSpace(value))
	if match == "" {
		return 0, false
	}
	parsed, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
