package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/types"
)

var importOutput string

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <entity> <file>",
	Short: "Import a spreadsheet into the clinic backend",
	Long: `Import a CSV or XLSX file into the clinic backend. Every row is normalized and
validated, then created through the backend API. Rows that fail are reported
as "Linha N: motivo", where N is the spreadsheet line (header is line 1).

Entities: insumos, produtos, pacientes`,
	Example: `  clinic-import import insumos ./insumos.csv
  clinic-import import pacientes ./pacientes.csv --delimiter semicolon
  clinic-import import produtos ./produtos.xlsx --output json`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importOutput, "output", "table", "Output format: table or json")
}

func runImport(cmd *cobra.Command, args []string) error {
	schema, err := lookupSchema(args[0])
	if err != nil {
		return err
	}
	filePath := args[1]

	opts, err := readOptions()
	if err != nil {
		return err
	}
	client, err := newBackendClient()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	logger.Info().Str("file", filePath).Msgf("Read %d bytes", len(content))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator := importer.NewCoordinator(schema, client, importOptions())
	session := importer.NewSession()

	showProgress := importOutput != "json"
	result, err := coordinator.Upload(ctx, session, filepath.Base(filePath), content, opts, func(p int) {
		if showProgress {
			fmt.Fprintf(os.Stderr, "\rImportando %s... %3d%%", schema.DisplayName, p)
		}
	})
	if showProgress {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil && result == nil {
		return err
	}

	switch strings.ToLower(importOutput) {
	case "json":
		if encErr := outputJSON(result); encErr != nil {
			return encErr
		}
	default:
		outputImportTable(schema.DisplayName, result)
	}
	// interrupted runs still print their partial tally
	return err
}

func outputImportTable(displayName string, result *types.BatchResult) {
	fmt.Printf("\nImportação de %s\n", displayName)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("%d importado(s) com sucesso, %d com erro\n", result.Success, result.Failed)

	if len(result.Errors) > 0 {
		fmt.Println("\nErros:")
		for _, e := range result.Errors {
			fmt.Printf("  %s\n", e)
		}
		if result.Truncated {
			fmt.Printf("  ... e mais %d erro(s) omitido(s)\n", result.Failed-len(result.Errors))
		}
	}

	if len(result.Notes) > 0 {
		fmt.Println("\nObservações:")
		for _, n := range result.Notes {
			fmt.Printf("  %s\n", n)
		}
	}

	if result.RefreshFailed {
		fmt.Println("\nAviso: a importação terminou, mas a lista não pôde ser atualizada.")
	}
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
