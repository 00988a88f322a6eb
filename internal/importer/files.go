package importer

import (
	"fmt"

	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/parsers/csv"
	"github.com/clinica/import-service/internal/parsers/xlsx"
	"github.com/clinica/import-service/internal/types"
)

// ReadOptions selects parser settings for ReadFile
type ReadOptions struct {
	CSV   csv.ParserOptions
	Sheet string
}

// DefaultReadOptions parses comma-separated UTF-8 (or auto-detected legacy
// encoding) CSV and the first XLSX sheet
func DefaultReadOptions() ReadOptions {
	return ReadOptions{CSV: csv.DefaultOptions()}
}

// ReadFile parses an upload by extension. Unknown extensions, unreadable
// content and files without data rows are FileFormatErrors.
func ReadFile(filename string, content []byte, opts ReadOptions) ([]types.RawRow, error) {
	fileType, ok := types.DetectFileType(filename)
	if !ok {
		return nil, &FileFormatError{Filename: filename, Reason: "formato não suportado, envie um arquivo .csv"}
	}

	var rows []types.RawRow
	var err error
	switch fileType {
	case types.FileTypeCSV:
		rows, err = csv.NewParser(opts.CSV).Parse(content)
	case types.FileTypeXLSX:
		rows, err = xlsx.NewParser(xlsx.ParserOptions{SheetName: opts.Sheet}).Parse(content)
	}
	if err != nil {
		return nil, &FileFormatError{Filename: filename, Reason: fmt.Sprintf("não foi possível ler o arquivo: %v", err)}
	}
	if len(rows) == 0 {
		return nil, &FileFormatError{Filename: filename, Reason: "arquivo vazio ou sem linhas de dados"}
	}
	return rows, nil
}

// Validate normalizes every row without submitting anything
func Validate(schema *entities.Schema, rows []types.RawRow) *types.ValidationReport {
	report := &types.ValidationReport{
		TotalRows:  len(rows),
		Rejections: make([]types.Rejection, 0),
	}
	for i, row := range rows {
		out := schema.Normalize(row, types.RowIndexFor(i))
		if out.Rejected() {
			report.Rejections = append(report.Rejections, *out.Rejection)
			continue
		}
		report.ValidRows++
		report.Warnings = append(report.Warnings, out.Warnings...)
	}
	return report
}
