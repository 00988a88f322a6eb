package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var templateOut string

// templateCmd represents the template command
var templateCmd = &cobra.Command{
	Use:   "template <entity>",
	Short: "Write the CSV template of an entity",
	Example: `  clinic-import template pacientes
  clinic-import template insumos -o modelo_insumos.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := lookupSchema(args[0])
		if err != nil {
			return err
		}

		if templateOut == "" {
			_, err := fmt.Fprint(os.Stdout, schema.Template)
			return err
		}
		if err := os.WriteFile(templateOut, []byte(schema.Template), 0644); err != nil {
			return fmt.Errorf("failed to write template: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Template written to %s\n", templateOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)

	templateCmd.Flags().StringVarP(&templateOut, "out", "o", "", "output file (default stdout)")
}
