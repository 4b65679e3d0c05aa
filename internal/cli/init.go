// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/household, cmd/export-worker and cmd/ledger.
package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"household/internal/config"
	applog "household/internal/log"
	"household/internal/report"
	"household/internal/services"
	"household/internal/sheets/google"
	"household/internal/storage"
)

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and sets it as the default logger.
func SetupLogger(level, format string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(level),
		JSON:      strings.EqualFold(format, "json"),
		Output:    os.Stdout,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *applog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.WithComponent(applog.ComponentStorage).Error("Failed to initialize SQLite repository",
			applog.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// BuildReportSink returns a sink that writes local .xlsx files and, when
// Google credentials are configured, gsheets:// destinations.
func BuildReportSink(ctx context.Context, logger *applog.Logger, cfg *config.Config) report.Sink {
	router := report.NewRouter(report.NewXLSXSink(cfg.ReportCurrencyFormat))
	if !cfg.GoogleConfigured() {
		return router
	}

	creds := google.Credentials{
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		OAuthClientJSON:    cfg.GoogleOAuthClientJSON,
		OAuthClientFile:    cfg.GoogleOAuthClientFile,
		OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
	}
	client, err := google.New(ctx, creds, cfg.ReportCurrencyFormat)
	if err != nil {
		logger.WithComponent(applog.ComponentReport).Warn("Google Sheets export disabled",
			applog.FieldError, err.Error())
		return router
	}
	router.Handle(google.Scheme, client)
	logger.WithComponent(applog.ComponentReport).Info("Google Sheets export enabled")
	return router
}

// NewLedgerService wires the aggregator and sink around repo.
func NewLedgerService(ctx context.Context, logger *applog.Logger, cfg *config.Config, repo *storage.SQLiteRepository, opts ...services.Option) (*services.LedgerService, *services.Aggregator) {
	agg := services.NewAggregator(repo, cfg.CacheSize, cfg.CacheTTL)
	sink := BuildReportSink(ctx, logger, cfg)
	opts = append([]services.Option{services.WithReportDir(cfg.ReportDir)}, opts...)
	return services.NewLedgerService(repo, agg, sink, opts...), agg
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
