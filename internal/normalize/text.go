// Package normalize holds the field-level rules used to turn loosely typed
// spreadsheet cells into canonical payload values.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/clinica/import-service/internal/types"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonDigitRe = regexp.MustCompile(`[^0-9]`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Resolve returns the trimmed value of the first alias present in the row
// with a non-empty value. The second result is false when no alias matched.
func Resolve(row types.RawRow, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := row.Get(alias); ok {
			v = strings.TrimSpace(v)
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// Optional returns nil for an empty string so the field is omitted from JSON
func Optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// RemoveDiacritics strips combining marks: "Médico" -> "Medico"
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// Fold lower-cases, strips accents and collapses whitespace
func Fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(RemoveDiacritics(s))), " ")
}

// OnlyDigits strips every non-digit character
func OnlyDigits(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// ValidEmail performs a shape check: one @ and a dotted domain
func ValidEmail(s string) bool {
	return emailRe.MatchString(strings.TrimSpace(s))
}

// SplitList splits a free-text list on ';' or '|' and drops empty items.
// Commas are kept because clinical notes use them inside items.
func SplitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '|'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseBool accepts the Portuguese and English spellings used in templates.
// The second result is false when the value is not recognised.
func ParseBool(s string) (bool, bool) {
	switch Fold(s) {
	case "sim", "s", "true", "t", "1", "yes", "y", "ativo", "verdadeiro":
		return true, true
	case "nao", "n", "false", "f", "0", "no", "inativo", "falso":
		return false, true
	}
	return false, false
}
