package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/clinica/import-service/config"
	"github.com/clinica/import-service/internal/backend"
	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/parsers/csv"
)

var (
	cfgFile    string
	backendURL string
	token      string
	delimiter  string
	encoding   string
	sheet      string

	cfg    *config.Config
	logger *zerolog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "clinic-import",
	Short: "Clinic Import CLI - bulk spreadsheet import tool",
	Long: `A CLI tool for importing supplies (insumos), retail products (produtos)
and patients (pacientes) from CSV or XLSX spreadsheets into the clinic backend.
Rows are validated and normalized locally, then submitted one by one; invalid
rows are reported with their spreadsheet line number.`,
	PersistentPreRunE: persistentPreRun,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "", "clinic backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "backend bearer token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&delimiter, "delimiter", "", "CSV delimiter: comma, semicolon, tab or auto")
	rootCmd.PersistentFlags().StringVar(&encoding, "encoding", "", "file encoding: auto, utf-8, windows-1252 or iso-8859-1")
	rootCmd.PersistentFlags().StringVar(&sheet, "sheet", "", "XLSX sheet name (default is the first sheet)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config is optional for offline commands
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()
	log.Logger = *logger
	return nil
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.WarnLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	// Logs go to stderr so command output can be piped
	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stderr
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &l
}

// newBackendClient builds the REST client from config and flags
func newBackendClient() (*backend.Client, error) {
	bc := backend.Config{}
	if cfg != nil {
		bc.BaseURL = cfg.Backend.URL
		bc.Token = cfg.Backend.Token
		bc.Timeout = cfg.Backend.Timeout
		bc.RateLimit = cfg.RateLimitSettings()
	}
	if backendURL != "" {
		bc.BaseURL = backendURL
	}
	if token != "" {
		bc.Token = token
	}
	if bc.BaseURL == "" {
		return nil, fmt.Errorf("backend URL not set (use --backend-url or BACKEND_URL)")
	}
	return backend.NewClient(bc), nil
}

// importOptions returns coordinator limits from config
func importOptions() importer.Options {
	if cfg == nil {
		return importer.DefaultOptions()
	}
	return cfg.ImportOptions()
}

// readOptions merges config and flag parser settings
func readOptions() (importer.ReadOptions, error) {
	opts := importer.DefaultReadOptions()
	if cfg != nil {
		opts = cfg.ReadOptions()
	}
	if delimiter != "" {
		d, ok := csv.ParseDelimiter(delimiter)
		if !ok {
			return opts, fmt.Errorf("invalid delimiter: %q", delimiter)
		}
		opts.CSV.Delimiter = d
	}
	if encoding != "" {
		e, ok := csv.ParseEncoding(encoding)
		if !ok {
			return opts, fmt.Errorf("invalid encoding: %q", encoding)
		}
		opts.CSV.Encoding = e
	}
	if sheet != "" {
		opts.Sheet = sheet
	}
	return opts, nil
}

func lookupSchema(name string) (*entities.Schema, error) {
	schema, ok := entities.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown entity: %s\nValid entities: %s", name, strings.Join(entities.Names(), ", "))
	}
	return schema, nil
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
