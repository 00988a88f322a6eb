package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinica/import-service/internal/exporter"
)

var (
	exportFormat string
	exportOut    string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <entity>",
	Short: "Download backend records in template layout",
	Long: `Fetch the current records of an entity from the clinic backend and write them
with the same columns as the import template, so the file can be edited and
imported again.`,
	Example: `  clinic-import export pacientes -o pacientes.csv
  clinic-import export insumos --format xlsx -o insumos.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "File format: csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default <entity>.<format>)")
}

func runExport(cmd *cobra.Command, args []string) error {
	schema, err := lookupSchema(args[0])
	if err != nil {
		return err
	}
	format, err := exporter.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	client, err := newBackendClient()
	if err != nil {
		return err
	}

	file, err := exporter.Export(cmd.Context(), client, schema, format)
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = file.Filename
	}
	if err := os.WriteFile(out, file.Data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	logger.Info().Str("file", out).Int("rows", file.Rows).Msg("Export written")
	fmt.Fprintf(os.Stderr, "%d registro(s) exportado(s) para %s\n", file.Rows, out)
	return nil
}
