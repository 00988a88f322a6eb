package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/clinica/import-service/internal/http/ratelimit"
	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/parsers/csv"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Import    ImportConfig    `mapstructure:"import"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	APIKey         string        `mapstructure:"api_key"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	// MaxConcurrentImports bounds background runs across all entities
	MaxConcurrentImports int64   `mapstructure:"max_concurrent_imports"`
	RequestsPerSecond    float64 `mapstructure:"requests_per_second"`
}

// BackendConfig holds the clinic REST API connection
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ImportConfig holds coordinator limits
type ImportConfig struct {
	MaxRows        int           `mapstructure:"max_rows"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxErrors      int           `mapstructure:"max_errors"`
	RefreshDelay   time.Duration `mapstructure:"refresh_delay"`
	RefreshRetries int           `mapstructure:"refresh_retries"`
	Delimiter      string        `mapstructure:"delimiter"`
	Encoding       string        `mapstructure:"encoding"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RateLimitConfig holds outgoing rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxRetries        int     `mapstructure:"max_retries"`
	InitialBackoffMs  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `mapstructure:"max_backoff_ms"`
}

// StorageConfig holds upload archive configuration
type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// SweeperConfig holds run cleanup configuration
type SweeperConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	RetentionDays int           `mapstructure:"retention_days"`
}

var globalConfig *Config

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadEnvFile(); err != nil {
		// .env is optional
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix("IMPORT_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// loadEnvFile loads the first .env file found by parsing KEY=VALUE lines
// and setting them as environment variables
func loadEnvFile() error {
	envPaths := []string{
		".",
		"./config",
	}

	for _, path := range envPaths {
		envFile := fmt.Sprintf("%s/.env", path)
		if _, err := os.Stat(envFile); err == nil {
			if err := loadDotEnvFile(envFile); err == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("no .env file found")
}

// loadDotEnvFile reads a .env file and sets environment variables that are
// not already set
func loadDotEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// bindEnvVars binds the unprefixed environment variables to config keys
func bindEnvVars(v *viper.Viper) {
	// Backend
	v.BindEnv("backend.url", "IMPORT_SERVICE_BACKEND_URL", "BACKEND_URL")
	v.BindEnv("backend.token", "IMPORT_SERVICE_BACKEND_TOKEN", "BACKEND_TOKEN")

	// Database
	v.BindEnv("database.url", "IMPORT_SERVICE_DATABASE_URL", "DATABASE_URL")

	// Server
	v.BindEnv("server.port", "IMPORT_SERVICE_SERVER_PORT", "PORT")
	v.BindEnv("server.host", "IMPORT_SERVICE_SERVER_HOST", "HOST")
	v.BindEnv("server.api_key", "IMPORT_SERVICE_SERVER_API_KEY", "API_KEY")

	// Logging
	v.BindEnv("logging.level", "IMPORT_SERVICE_LOGGING_LEVEL", "LOG_LEVEL")

	// Storage
	v.BindEnv("storage.base_path", "IMPORT_SERVICE_STORAGE_BASE_PATH", "STORAGE_PATH")

	// Telemetry
	v.BindEnv("telemetry.endpoint", "IMPORT_SERVICE_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.max_concurrent_imports", 2)
	v.SetDefault("server.requests_per_second", 20)

	// Backend defaults
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 30*time.Second)

	// Import defaults
	v.SetDefault("import.max_rows", importer.DefaultMaxRows)
	v.SetDefault("import.batch_size", importer.DefaultBatchSize)
	v.SetDefault("import.max_errors", importer.DefaultMaxErrors)
	v.SetDefault("import.refresh_delay", importer.DefaultRefreshDelay)
	v.SetDefault("import.refresh_retries", importer.DefaultRefreshRetries)
	v.SetDefault("import.delimiter", ",")
	v.SetDefault("import.encoding", "")

	// Database defaults
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 1)
	v.SetDefault("database.max_conn_lifetime", 1*time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	// Rate limit defaults
	def := ratelimit.DefaultConfig()
	v.SetDefault("rate_limit.requests_per_second", def.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", def.Burst)
	v.SetDefault("rate_limit.max_retries", def.MaxRetries)
	v.SetDefault("rate_limit.initial_backoff_ms", def.InitialBackoffMs)
	v.SetDefault("rate_limit.max_backoff_ms", def.MaxBackoffMs)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/uploads")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "import-service")

	// Sweeper defaults
	v.SetDefault("sweeper.interval", 10*time.Minute)
	v.SetDefault("sweeper.stale_after", 30*time.Minute)
	v.SetDefault("sweeper.retention_days", 30)
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// GetDatabaseURL returns the database URL from config or environment
func GetDatabaseURL() string {
	if cfg := Get(); cfg != nil && cfg.Database.URL != "" {
		return cfg.Database.URL
	}
	return os.Getenv("DATABASE_URL")
}

// RateLimitSettings converts the rate limit section for the HTTP client
func (c *Config) RateLimitSettings() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		MaxRetries:        c.RateLimit.MaxRetries,
		InitialBackoffMs:  c.RateLimit.InitialBackoffMs,
		MaxBackoffMs:      c.RateLimit.MaxBackoffMs,
	}
}

// ImportOptions converts the import section for the coordinator
func (c *Config) ImportOptions() importer.Options {
	return importer.Options{
		MaxRows:        c.Import.MaxRows,
		BatchSize:      c.Import.BatchSize,
		MaxErrors:      c.Import.MaxErrors,
		RefreshDelay:   c.Import.RefreshDelay,
		RefreshRetries: c.Import.RefreshRetries,
	}
}

// ReadOptions converts the import section for the file readers
func (c *Config) ReadOptions() importer.ReadOptions {
	opts := importer.DefaultReadOptions()
	if d, ok := csv.ParseDelimiter(c.Import.Delimiter); ok {
		opts.CSV.Delimiter = d
	}
	if enc, ok := csv.ParseEncoding(c.Import.Encoding); ok {
		opts.CSV.Encoding = enc
	}
	return opts
}
