package csv

import (
	"strings"

	"github.com/clinica/import-service/internal/parsers/charset"
)

// Delimiter represents supported field delimiters
type Delimiter string

const (
	DelimiterComma     Delimiter = ","
	DelimiterSemicolon Delimiter = ";"
	DelimiterTab       Delimiter = "\t"
	// DelimiterAuto detects the delimiter from the first lines of the file
	DelimiterAuto Delimiter = "auto"
)

// Encoding re-exports the charset encoding type for parser options
type Encoding = charset.Encoding

const (
	EncodingAuto        Encoding = ""
	EncodingUTF8        Encoding = charset.EncodingUTF8
	EncodingWindows1252 Encoding = charset.EncodingWindows1252
	EncodingISO88591    Encoding = charset.EncodingISO88591
)

// ParserOptions represents CSV parser options
type ParserOptions struct {
	Delimiter Delimiter `json:"delimiter,omitempty"`
	Encoding  Encoding  `json:"encoding,omitempty"`
	QuoteChar rune      `json:"quoteChar,omitempty"`
}

// DefaultOptions returns the options matching the upload contract:
// comma separated, double-quote quoting, encoding detected from content.
func DefaultOptions() ParserOptions {
	return ParserOptions{
		Delimiter: DelimiterComma,
		Encoding:  EncodingAuto,
		QuoteChar: '"',
	}
}

// ParseDelimiter maps a user supplied flag value to a Delimiter
func ParseDelimiter(s string) (Delimiter, bool) {
	switch s {
	case "", ",", "comma":
		return DelimiterComma, true
	case ";", "semicolon":
		return DelimiterSemicolon, true
	case "\t", "tab", "\\t":
		return DelimiterTab, true
	case "auto":
		return DelimiterAuto, true
	}
	return "", false
}

// ParseEncoding maps a user supplied flag value to an Encoding
func ParseEncoding(s string) (Encoding, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return EncodingAuto, true
	case "utf-8", "utf8":
		return EncodingUTF8, true
	case "windows-1252", "cp1252":
		return EncodingWindows1252, true
	case "iso-8859-1", "latin1", "latin-1":
		return EncodingISO88591, true
	}
	return "", false
}
