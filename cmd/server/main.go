/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Cofina dashboard backend: analytics datasets
  proxied with agency objectives merged in, plus objective management.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env files, config file, environment and flags (config package)
  2. Build the zap logger
  3. Initialize SQLite objective store
  4. Create the analytics client, wrapped in the TTL cache
  5. Create API handler and router
  6. Start the cache warmer and the HTTP server

COMMAND-LINE FLAGS:
  --config          Config file (default: ./cofidash.yaml when present)
  --port            HTTP server port (default: 8080)
  --db              SQLite database path (default: cofidash.db)
                    Use ":memory:" for in-memory database
  --analytics-url   Base URL of the analytics proxy
  --log-level       debug, info, warn, error

  Every other setting is read from the config file or COFIDASH_* variables,
  see config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the cache warmer
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server --db=./data/cofidash.db

  # Run against a remote analytics proxy, verbose
  COFIDASH_ANALYTICS_URL=http://analytics:8001 ./server --log-level=debug

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Modou1ngom/cofidash/api"
	"github.com/Modou1ngom/cofidash/config"
	"github.com/Modou1ngom/cofidash/source"
	"github.com/Modou1ngom/cofidash/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "cofidash-server",
		Short:         "Serve analytics datasets with agency objectives merged in",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config.LoadEnvFiles()
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.Int("port", 8080, "HTTP server port")
	flags.String("db", "cofidash.db", "SQLite database path")
	flags.String("analytics-url", "", "analytics proxy base URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		config.KeyConfigFile:   "config",
		config.KeyPort:         "port",
		config.KeyDB:           "db",
		config.KeyAnalyticsURL: "analytics-url",
		config.KeyLogLevel:     "log-level",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Analytics source, cached
	client := source.NewClient(cfg.AnalyticsURL,
		source.WithTimeout(cfg.AnalyticsTimeout),
		source.WithDatasetTimeout(source.DatasetPrepaidCardSales, cfg.PrepaidTimeout))
	cache := source.NewCache(cfg.CacheTTL, logger)
	if !cfg.CacheEnabled {
		cache.Disable()
	}
	cached := source.NewCached(client, cache)

	handler := api.NewHandler(store, cached, logger)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.CORSOrigins})

	warmer := api.NewCacheWarmer(cached, logger)
	warmer.Interval = cfg.CacheWarm
	if !cfg.CacheEnabled {
		warmer.Interval = 0
	}

	// WriteTimeout covers the slowest dataset.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PrepaidTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("db", cfg.DB),
			zap.String("analytics_url", cfg.AnalyticsURL),
			zap.Bool("cache_enabled", cfg.CacheEnabled))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	warmer.Start()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		warmer.Stop()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	warmer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
