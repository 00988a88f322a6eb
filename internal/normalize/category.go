package normalize

import (
	"fmt"
	"strings"
)

// Option is one entry of a fixed enum: the canonical value sent to the API
// and the label shown to users.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// MatchOption resolves user input to a canonical enum value. Tried in
// order: exact value, case-insensitive label, value with spaces in place of
// underscores, and finally accent-insensitive label.
func MatchOption(input string, options []Option) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	lower := strings.ToLower(input)
	spaced := underscored(lower)

	for _, opt := range options {
		if opt.Value == lower || strings.EqualFold(opt.Label, input) {
			return opt.Value, true
		}
	}
	for _, opt := range options {
		if underscored(opt.Value) == spaced {
			return opt.Value, true
		}
	}

	folded := Fold(input)
	for _, opt := range options {
		if Fold(opt.Label) == folded || underscored(Fold(opt.Value)) == underscored(folded) {
			return opt.Value, true
		}
	}
	return "", false
}

// OptionValues lists the canonical values, in table order
func OptionValues(options []Option) []string {
	values := make([]string, len(options))
	for i, opt := range options {
		values[i] = opt.Value
	}
	return values
}

// InvalidOptionMessage explains a failed match, echoing the valid values
func InvalidOptionMessage(field, input string, options []Option) string {
	return fmt.Sprintf("%s inválida: %q. Valores válidos: %s", field, input, strings.Join(OptionValues(options), ", "))
}

func underscored(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), "_")
}
