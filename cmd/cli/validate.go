package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/types"
)

var (
	validateOutput string
	validateLimit  int
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <entity> <file>",
	Short: "Check a spreadsheet without importing it",
	Long: `Parse and normalize a CSV or XLSX file exactly as import would, without
contacting the backend. Reports rejected rows and optional values that would
be dropped.`,
	Example: `  clinic-import validate pacientes ./pacientes.csv
  clinic-import validate insumos ./insumos.csv --output json`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateOutput, "output", "table", "Output format: table or json")
	validateCmd.Flags().IntVar(&validateLimit, "limit", 20, "Maximum rejections to print in table output")
}

func runValidate(cmd *cobra.Command, args []string) error {
	schema, err := lookupSchema(args[0])
	if err != nil {
		return err
	}
	filePath := args[1]

	opts, err := readOptions()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	rows, err := importer.ReadFile(filepath.Base(filePath), content, opts)
	if err != nil {
		return err
	}
	if err := importer.CheckRows(rows, importOptions().MaxRows); err != nil {
		return err
	}

	report := importer.Validate(schema, rows)

	switch strings.ToLower(validateOutput) {
	case "json":
		return outputJSON(report)
	case "table":
		outputValidateTable(schema.DisplayName, report)
	default:
		return fmt.Errorf("invalid output format: %s (use 'table' or 'json')", validateOutput)
	}
	return nil
}

func outputValidateTable(displayName string, report *types.ValidationReport) {
	fmt.Printf("\nValidação de %s\n", displayName)
	fmt.Println(strings.Repeat("-", 60))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Metric\tValue\n")
	fmt.Fprintf(w, "------\t-----\n")
	fmt.Fprintf(w, "Total Rows\t%d\n", report.TotalRows)
	fmt.Fprintf(w, "Valid Rows\t%d\n", report.ValidRows)
	fmt.Fprintf(w, "Rejected Rows\t%d\n", len(report.Rejections))
	fmt.Fprintf(w, "Warnings\t%d\n", len(report.Warnings))
	w.Flush()

	if len(report.Rejections) > 0 {
		fmt.Println("\nRejeitadas:")
		for i, r := range report.Rejections {
			if validateLimit > 0 && i >= validateLimit {
				fmt.Printf("  ... e mais %d\n", len(report.Rejections)-i)
				break
			}
			fmt.Printf("  %s\n", types.FormatRowMessage(r.RowIndex, r.Reason))
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Println("\nAvisos:")
		for _, warn := range report.Warnings {
			fmt.Printf("  %s\n", warn)
		}
	}
}
