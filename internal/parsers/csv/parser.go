package csv

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/clinica/import-service/internal/parsers/charset"
	"github.com/clinica/import-service/internal/types"
	"github.com/rs/zerolog/log"
)

var lineBreakRe = regexp.MustCompile(`\r?\n`)

// Parser turns CSV text into header-keyed rows
type Parser struct {
	options ParserOptions
}

// NewParser creates a new CSV parser with the given options
func NewParser(options ParserOptions) *Parser {
	if options.QuoteChar == 0 {
		options.QuoteChar = '"'
	}
	if options.Delimiter == "" {
		options.Delimiter = DelimiterComma
	}
	return &Parser{
		options: options,
	}
}

// Parse decodes content to UTF-8 and parses it into rows.
// An error is returned only when the bytes cannot be decoded; a file with
// no header or no data rows yields an empty slice.
func (p *Parser) Parse(content []byte) ([]types.RawRow, error) {
	enc := p.options.Encoding
	if enc == EncodingAuto {
		enc = charset.DetectEncoding(content)
	}

	decoded, err := charset.Decode(content, enc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}

	return p.ParseString(decoded), nil
}

// ParseString parses already decoded CSV text.
// Fewer than two non-blank lines (header plus one data row) yields no rows.
func (p *Parser) ParseString(text string) []types.RawRow {
	lines := nonBlankLines(text)
	if len(lines) < 2 {
		return []types.RawRow{}
	}

	delim := p.options.Delimiter
	if delim == DelimiterAuto {
		delim = DetectDelimiter(text)
		log.Debug().Str("delimiter", string(delim)).Msg("Detected CSV delimiter")
	}
	delimRune, _ := utf8.DecodeRuneInString(string(delim))

	headers := NormalizeHeaders(SplitLine(lines[0], delimRune, p.options.QuoteChar))

	rows := make([]types.RawRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		row := types.NewRawRow(headers, SplitLine(line, delimRune, p.options.QuoteChar))
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}

	return rows
}

// Parse parses CSV text with the default options
func Parse(text string) []types.RawRow {
	return NewParser(DefaultOptions()).ParseString(text)
}

// NormalizeHeaders lower-cases, trims and strips one layer of surrounding
// quotes from each header name.
func NormalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = NormalizeHeader(h)
	}
	return headers
}

// NormalizeHeader normalizes a single header name
func NormalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	if len(h) >= 2 && strings.HasPrefix(h, `"`) && strings.HasSuffix(h, `"`) {
		h = strings.TrimSpace(h[1 : len(h)-1])
	}
	return strings.ToLower(h)
}

// SplitLine splits one CSV line into fields.
// A quote toggles quoted mode; a doubled quote inside quotes emits a
// literal quote; the delimiter ends a field only outside quotes. No
// backslash escapes are recognised.
func SplitLine(line string, delimiter rune, quoteChar rune) []string {
	fields := make([]string, 0, 16)
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); {
		r, width := utf8.DecodeRuneInString(line[i:])
		i += width

		if r == quoteChar {
			if inQuotes && i < len(line) {
				next, nextWidth := utf8.DecodeRuneInString(line[i:])
				if next == quoteChar {
					current.WriteRune(quoteChar)
					i += nextWidth
					continue
				}
			}
			inQuotes = !inQuotes
			continue
		}

		if r == delimiter && !inQuotes {
			fields = append(fields, current.String())
			current.Reset()
			continue
		}

		current.WriteRune(r)
	}

	fields = append(fields, current.String())
	return fields
}

func nonBlankLines(text string) []string {
	all := lineBreakRe.Split(text, -1)
	lines := make([]string, 0, len(all))
	for _, line := range all {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
