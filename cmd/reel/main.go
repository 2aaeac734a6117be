package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FranksOps/reel/internal/config"
	"github.com/FranksOps/reel/internal/fingerprint"
	"github.com/FranksOps/reel/internal/scraper"
	"github.com/FranksOps/reel/internal/storage"
	"github.com/FranksOps/reel/internal/storage/csvbackend"
	"github.com/FranksOps/reel/internal/storage/jsonbackend"
	"github.com/FranksOps/reel/internal/storage/postgres"
	"github.com/FranksOps/reel/internal/storage/sqlite"
	"github.com/FranksOps/reel/pkg/ratelimit"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reel",
		Short: "Reel collects movie metadata from Wikipedia and Google knowledge panels",
		Long: `Reel builds a per-year movie dataset in two steps.

  films   downloads the Wikipedia "List of American films of <year>" tables
  panels  searches every listed title and extracts the knowledge panel

Records go to CSV, NDJSON, SQLite or Postgres.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(filmsCmd())
	rootCmd.AddCommand(panelsCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// loadConfig loads, overrides and validates the configuration, then builds
// the logger it describes.
func loadConfig(override func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if override != nil {
		override(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := setupLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// setupLogger creates a structured logger.
func setupLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// newFetcher builds a fetcher labelled with source for metrics.
func newFetcher(cfg *config.Config, source string, limiter *ratelimit.Limiter, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, err
	}
	return scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Fetch.Timeout,
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UserAgent:    cfg.Fetch.UserAgent,
		Fingerprint:  profile,
		Limiter:      limiter,
		Source:       source,
		Logger:       logger,
	})
}

// openBackend opens the configured record store for year.
func openBackend(ctx context.Context, cfg *config.Config, year int) (storage.Backend, error) {
	if cfg.Storage.Type == "postgres" {
		return postgres.New(ctx, cfg.Storage.DSN)
	}

	path := cfg.RecordsPath(year)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	switch cfg.Storage.Type {
	case "csv":
		return csvbackend.New(path)
	case "json":
		return jsonbackend.New(path)
	case "sqlite":
		return sqlite.New(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}
}

// versionCmd prints the build version.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "reel %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Data dir:            %s\n", cfg.DataDir)
			fmt.Fprintf(out, "\nFetch:\n")
			fmt.Fprintf(out, "  Timeout:           %s\n", cfg.Fetch.Timeout)
			fmt.Fprintf(out, "  User Agent:        %s\n", cfg.Fetch.UserAgent)
			fmt.Fprintf(out, "  Fingerprint:       %s\n", cfg.Fetch.Fingerprint)
			fmt.Fprintf(out, "  Rate:              %g/s (jitter %g)\n", cfg.Fetch.RPS, cfg.Fetch.Jitter)
			fmt.Fprintf(out, "\nApify:\n")
			fmt.Fprintf(out, "  Endpoint:          %s\n", cfg.Apify.Endpoint)
			fmt.Fprintf(out, "  API Key:           %s\n", mask(cfg.Apify.APIKey))
			fmt.Fprintf(out, "  Results Per Page:  %d\n", cfg.Apify.ResultsPerPage)
			fmt.Fprintf(out, "  Archive:           %v\n", cfg.Apify.Archive)
			fmt.Fprintf(out, "\nStorage:\n")
			fmt.Fprintf(out, "  Type:              %s\n", cfg.Storage.Type)
			fmt.Fprintf(out, "  Failed Queries:    %s\n", cfg.FailedPath())
			fmt.Fprintf(out, "\nMetrics:\n")
			fmt.Fprintf(out, "  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
