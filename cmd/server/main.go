// Post-purchase upsell service - matches purchases to merchant funnels
// and signs checkout change-sets for the buyer extension.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"postpurchase/internal/catalog"
	"postpurchase/internal/clienthint"
	"postpurchase/internal/config"
	"postpurchase/internal/handler"
	"postpurchase/internal/middleware"
	"postpurchase/internal/offer"
	"postpurchase/internal/signing"
	"postpurchase/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local development convenience; production injects real env vars
	_ = godotenv.Load()

	// Initialize structured logger
	logger := initLogger()
	slog.SetDefault(logger)

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("api_version", cfg.App.APIVersion),
		slog.String("platform_domain", cfg.App.PlatformDomain),
	)

	// Apply schema migrations before opening the pool
	if err := runMigrations(cfg.App.DatabaseURL); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	logger.Info("database migrations applied")

	st, err := postgres.New(ctx, cfg.App.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()

	// Wire services
	fetcher := catalog.NewClient(cfg.App.APIVersion, logger)
	offers := offer.NewService(st, fetcher, logger)
	policy := signing.NewOriginPolicy(cfg.App.PlatformDomain, cfg.App.AppURL, cfg.App.AllowedOrigins)
	signer := signing.New(policy, cfg.App.PlatformDomain, logger)

	h := handler.New(st, offers, signer, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → client hint
	// Recovery must be outermost to catch panics from the rest
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		clienthint.Middleware(cfg.App.MinExtensionVersion, logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// runMigrations applies db/migrations against the configured database.
// A dedicated migrations table keeps us clear of the install flow's
// own schema bookkeeping in the same database.
func runMigrations(databaseURL string) error {
	sep := "?"
	if strings.Contains(databaseURL, "?") {
		sep = "&"
	}
	m, err := migrate.New("file://db/migrations", databaseURL+sep+"x-migrations-table=upsell_schema_migrations")
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
