/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the compensatory day-off server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then flags)
  2. Build the root logger
  3. Open the store (SQLite or PostgreSQL)
  4. Load a seed scenario if requested
  5. Start the reconciliation scheduler
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080, env COMPDAY_PORT)
  -db      SQLite database path (default: compday.db, env COMPDAY_DB_PATH)
           Use ":memory:" for in-memory database
  -driver  sqlite or postgres (env COMPDAY_DB_DRIVER; postgres reads DATABASE_URL)
  -seed    Scenario to load on startup, e.g. demo (env COMPDAY_SEED)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Demo on an in-memory database
  ./server -db=":memory:" -seed=demo

  # PostgreSQL
  DATABASE_URL=postgres://... JWT_SECRET=... APP_ENV=production ./server -driver=postgres

SEE ALSO:
  - config/config.go: All settings
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/postgres/postgres.go: Stores
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/compday/api"
	"github.com/warp/compday/config"
	"github.com/warp/compday/store/postgres"
	"github.com/warp/compday/store/sqlite"
)

type backend interface {
	api.Backend
	Close() error
}

func main() {
	cfg, err := config.Load().ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize store
	store, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Driver).Msg("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, cfg.Secret(), cfg.TokenTTL, cfg.ProvisionalGrace, logger)

	if cfg.SeedScenario != "" {
		if err := handler.ApplyScenario(context.Background(), cfg.SeedScenario); err != nil {
			logger.Fatal().Err(err).Msg("Failed to load seed scenario")
		}
	}

	// Provisional-request cleanup; the first run happens on Start
	scheduler := api.NewReconciliationScheduler(handler.Reconciler, logger)
	scheduler.CheckInterval = cfg.ReconcileInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("driver", cfg.Driver).
			Str("env", cfg.Environment).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error().Err(err).Msg("Server failed")
	}

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server stopped")
}

// newLogger writes human-readable output in development, JSON otherwise.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Str("service", "compday").Logger()
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	if cfg.Driver == config.DriverPostgres {
		store, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}
