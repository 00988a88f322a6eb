package csv

import (
	"io"
	"strings"
)

// FormatLine serializes one record, quoting fields that contain the
// delimiter, a quote, a line break or surrounding whitespace. Quotes are
// doubled inside quoted fields.
func FormatLine(fields []string, delimiter Delimiter) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString(string(delimiter))
		}
		b.WriteString(quoteField(f, string(delimiter)))
	}
	return b.String()
}

// Write renders a header line followed by one line per record
func Write(w io.Writer, headers []string, records [][]string) error {
	if _, err := io.WriteString(w, FormatLine(headers, DelimiterComma)+"\n"); err != nil {
		return err
	}
	for _, rec := range records {
		if _, err := io.WriteString(w, FormatLine(rec, DelimiterComma)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func quoteField(f string, delimiter string) string {
	needsQuotes := strings.Contains(f, delimiter) ||
		strings.ContainsAny(f, "\"\r\n") ||
		strings.TrimSpace(f) != f
	if !needsQuotes {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}
