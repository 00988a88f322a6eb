package xlsx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/clinica/import-service/internal/parsers/csv"
	"github.com/clinica/import-service/internal/types"
	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the sheet name used for exported workbooks
const DefaultSheetName = "Dados"

// ParserOptions represents XLSX parser options
type ParserOptions struct {
	// SheetName selects a sheet by name; empty means the first sheet
	SheetName string `json:"sheetName,omitempty"`
}

// Parser reads a workbook sheet into the same row shape the CSV parser produces
type Parser struct {
	options ParserOptions
}

// NewParser creates a new XLSX parser
func NewParser(options ParserOptions) *Parser {
	return &Parser{options: options}
}

// Parse reads the selected sheet. The first non-blank row is the header;
// headers are normalized like CSV headers and blank data rows are skipped.
// A sheet without a header and at least one data row yields no rows.
func (p *Parser) Parse(content []byte) ([]types.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := p.selectSheet(f)
	if err != nil {
		return nil, err
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %s: %w", sheet, err)
	}

	lines := make([][]string, 0, len(cells))
	for _, r := range cells {
		if isEmptyRow(r) {
			continue
		}
		lines = append(lines, r)
	}
	if len(lines) < 2 {
		return []types.RawRow{}, nil
	}

	headers := csv.NormalizeHeaders(lines[0])
	rows := make([]types.RawRow, 0, len(lines)-1)
	for _, r := range lines[1:] {
		row := types.NewRawRow(headers, r)
		if row.IsBlank() {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *Parser) selectSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if p.options.SheetName == "" {
		return sheets[0], nil
	}
	for _, name := range sheets {
		if strings.EqualFold(name, p.options.SheetName) {
			return name, nil
		}
	}
	return "", fmt.Errorf("sheet %q not found. Available sheets: %s", p.options.SheetName, strings.Join(sheets, ", "))
}

// WriteRows builds a single-sheet workbook with a bold header row
func WriteRows(headers []string, records [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DefaultSheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := setRow(f, 1, headers); err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := f.SetCellStyle(DefaultSheetName, "A1", last, style); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}

	for i, rec := range records {
		if err := setRow(f, i+2, rec); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(DefaultSheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
