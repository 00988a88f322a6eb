// Package exporter turns the backend list of an entity into a file that the
// import templates accept back.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/clinica/import-service/internal/backend"
	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/normalize"
	"github.com/clinica/import-service/internal/parsers/csv"
	"github.com/clinica/import-service/internal/parsers/xlsx"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" (default for empty) and "xlsx"
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format: %q", s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Lister is the subset of the backend client used for exports
type Lister interface {
	List(ctx context.Context, path string) ([]backend.Item, error)
}

// File is a rendered export
type File struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// Export fetches the entity list and renders it
func Export(ctx context.Context, api Lister, schema *entities.Schema, format Format) (*File, error) {
	items, err := api.List(ctx, schema.ListPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", schema.Name, err)
	}
	return Render(schema, items, format)
}

// Render writes items using the schema export columns
func Render(schema *entities.Schema, items []backend.Item, format Format) (*File, error) {
	headers, records := Records(schema, items)

	var data []byte
	switch format {
	case FormatXLSX:
		b, err := xlsx.WriteRows(headers, records)
		if err != nil {
			return nil, fmt.Errorf("failed to write xlsx: %w", err)
		}
		data = b
	default:
		var buf bytes.Buffer
		if err := csv.Write(&buf, headers, records); err != nil {
			return nil, fmt.Errorf("failed to write csv: %w", err)
		}
		data = buf.Bytes()
	}

	return &File{
		Filename:    fmt.Sprintf("%s.%s", schema.Name, format),
		ContentType: format.ContentType(),
		Data:        data,
		Rows:        len(records),
	}, nil
}

// Records converts list items to template columns
func Records(schema *entities.Schema, items []backend.Item) ([]string, [][]string) {
	headers := make([]string, len(schema.ExportColumns))
	for i, col := range schema.ExportColumns {
		headers[i] = col.Header
	}

	records := make([][]string, 0, len(items))
	for _, item := range items {
		rec := make([]string, len(schema.ExportColumns))
		for i, col := range schema.ExportColumns {
			rec[i] = cell(col.Key, item[col.Key])
		}
		records = append(records, rec)
	}
	return headers, records
}

// The parser splits records on line breaks before quote handling, so
// multi-line text is flattened to keep one record per line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func cell(key string, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return lineBreaks.Replace(val)
	case bool:
		if val {
			return "sim"
		}
		return "não"
	case float64:
		if key == "unit_price" {
			return normalize.FormatPrice(val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if s := cell(key, p); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(v)
}
