// @title Clinic Import Service API
// @version 1.0
// @description Bulk CSV and XLSX import of supplies, retail products and patients into the clinic backend.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/clinica/import-service/config"
	_ "github.com/clinica/import-service/docs"
	"github.com/clinica/import-service/internal/backend"
	"github.com/clinica/import-service/internal/database"
	"github.com/clinica/import-service/internal/entities"
	"github.com/clinica/import-service/internal/handlers"
	"github.com/clinica/import-service/internal/importer"
	"github.com/clinica/import-service/internal/middleware"
	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/storage"
	"github.com/clinica/import-service/internal/sweepers"
	"github.com/clinica/import-service/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)
	log.Logger = *logger

	logger.Info().Str("version", version).Msg("Starting import service")

	if cfg.Backend.URL == "" {
		logger.Fatal().Msg("BACKEND_URL not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	store := openRunStore(ctx, cfg, logger)
	defer database.Close()

	files, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Storage.BasePath).Msg("Failed to initialize upload storage")
	}

	client := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.URL,
		Token:     cfg.Backend.Token,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.RateLimitSettings(),
	})

	sweeper := sweepers.NewRunSweeper(store, files, logger, sweepers.RunSweeperConfig{
		Interval:   cfg.Sweeper.Interval,
		StaleAfter: cfg.Sweeper.StaleAfter,
		Retention:  time.Duration(cfg.Sweeper.RetentionDays) * 24 * time.Hour,
	})
	if err := sweeper.RecoverOnStartup(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to handle interrupted runs")
	}
	go sweeper.Start(ctx)

	importOpts := cfg.ImportOptions()
	runner := runs.NewRunner(runs.RunnerConfig{
		Store: store,
		Files: files,
		NewCoordinator: func(schema *entities.Schema) *importer.Coordinator {
			return importer.NewCoordinator(schema, client, importOpts)
		},
		ReadOptions:   cfg.ReadOptions(),
		MaxConcurrent: cfg.Server.MaxConcurrentImports,
	})

	handlers.Init(handlers.Deps{
		Runner:         runner,
		Store:          store,
		Backend:        client,
		ReadOptions:    cfg.ReadOptions(),
		MaxRows:        cfg.Import.MaxRows,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	limiter := middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		BurstSize:         int(cfg.Server.RequestsPerSecond * 2),
		CleanupInterval:   5 * time.Minute,
	})
	go limiter.RunCleanup(ctx)

	api := router.Group("/api")
	if cfg.Server.APIKey != "" {
		api.Use(middleware.APIKeyAuth(cfg.Server.APIKey))
	} else {
		logger.Warn().Msg("API_KEY not set, /api is unauthenticated")
	}
	api.Use(middleware.RateLimit(limiter))
	handlers.RegisterRoutes(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Import runs did not finish in time")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to flush telemetry")
	}

	logger.Info().Msg("Server exited")
}

// openRunStore connects to PostgreSQL when configured and falls back to
// an in-memory store otherwise
func openRunStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) runs.Store {
	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, import runs are kept in memory")
		return runs.NewMemoryStore()
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	store := database.NewRunStore(database.Pool())
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	logger.Info().Msg("Database connected")
	return store
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "import-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
