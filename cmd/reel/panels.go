package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/reel/internal/config"
	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/pipeline"
	"github.com/FranksOps/reel/internal/report"
	"github.com/FranksOps/reel/internal/serp"
	"github.com/FranksOps/reel/pkg/ratelimit"
)

type panelsOptions struct {
	year        int
	list        string
	retryFailed bool
	offline     bool
	metricsPort int
	format      string
}

// panelsCmd creates the "panels" subcommand.
func panelsCmd() *cobra.Command {
	opts := &panelsOptions{}

	cmd := &cobra.Command{
		Use:   "panels",
		Short: "Search every listed film and store its knowledge panel",
		Long: `Read the film list for --year, search "<title> movie <year>" through the
Apify Google Search actor, extract the knowledge panel and store it.
Queries that fail are appended to the failed-queries log; --retry-failed
runs the logged queries for --year again instead of the film list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(func(cfg *config.Config) {
				if cmd.Flags().Changed("metrics-port") {
					cfg.Metrics.Port = opts.metricsPort
				}
			})
			if err != nil {
				return err
			}
			if opts.year <= 0 {
				return fmt.Errorf("--year is required")
			}

			ctx, cancel := signalContext(logger)
			defer cancel()

			summary, err := runPanels(ctx, cfg, opts, logger)
			if summary != nil {
				if werr := report.Write(cmd.OutOrStdout(), opts.format, summary); werr != nil && err == nil {
					err = werr
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&opts.year, "year", 0, "release year of the film list")
	cmd.Flags().StringVar(&opts.list, "list", "", "film list path (default <data_dir>/movie_list/movies_<year>.csv)")
	cmd.Flags().BoolVar(&opts.retryFailed, "retry-failed", false, "re-run the failed queries for --year instead of the film list")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "reparse archived API responses instead of calling the API")
	cmd.Flags().IntVar(&opts.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port while running")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "summary format: text or json")

	return cmd
}

func runPanels(ctx context.Context, cfg *config.Config, opts *panelsOptions, logger *slog.Logger) (*report.Summary, error) {
	queries, err := panelQueries(cfg, opts, logger)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		logger.Info("nothing to do", "year", opts.year)
		return nil, nil
	}

	provider, err := newProvider(cfg, opts, logger)
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg, opts.year)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer backend.Close()

	failed := pipeline.NewFailedLog(cfg.FailedPath())
	if opts.retryFailed {
		// The log is only touched once everything the run needs is in place.
		queries, err = pipeline.TakeFailed(failed.Path(), pipeline.ForYear(opts.year))
		if err != nil {
			return nil, fmt.Errorf("take failed queries: %w", err)
		}
		logger.Info("retrying failed queries", "year", opts.year, "count", len(queries), "path", failed.Path())
	}

	p := pipeline.New(provider, backend, failed, logger)
	p.Year = opts.year

	logger.Info("starting run", "year", opts.year, "queries", len(queries), "storage", cfg.Storage.Type)

	summary, err := runPipeline(ctx, cfg, p, queries, logger)
	if err != nil && opts.retryFailed {
		processed := 0
		if summary != nil {
			processed = summary.Queries
		}
		if rest := queries[processed:]; len(rest) > 0 {
			if rerr := failed.AppendAll(rest); rerr != nil {
				logger.Error("failed to restore unprocessed queries", "count", len(rest), "err", rerr)
			} else {
				logger.Warn("restored unprocessed queries", "count", len(rest), "path", failed.Path())
			}
		}
	}
	return summary, err
}

// runPipeline runs p, with the metrics server beside it when a port is set.
func runPipeline(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline, queries []string, logger *slog.Logger) (*report.Summary, error) {
	if cfg.Metrics.Port == 0 {
		return p.Run(ctx, queries)
	}

	srv, err := metrics.Listen(cfg.Metrics.Port, logger)
	if err != nil {
		return nil, err
	}

	var summary *report.Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Serve)
	g.Go(func() error {
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				logger.Warn("metrics server shutdown failed", "err", err)
			}
		}()
		var err error
		summary, err = p.Run(gctx, queries)
		return err
	})
	err = g.Wait()
	return summary, err
}

// panelQueries returns the film-list queries, or for --retry-failed a
// preview of the failed queries for the year; those are only taken from
// the log once the run is ready to start.
func panelQueries(cfg *config.Config, opts *panelsOptions, logger *slog.Logger) ([]string, error) {
	if opts.retryFailed {
		all, err := pipeline.ReadFailed(cfg.FailedPath())
		if err != nil {
			return nil, fmt.Errorf("read failed queries: %w", err)
		}
		forYear := pipeline.ForYear(opts.year)
		var queries []string
		for _, q := range all {
			if forYear(q) {
				queries = append(queries, q)
			}
		}
		return queries, nil
	}

	list := opts.list
	if list == "" {
		list = pipeline.MovieListPath(cfg.DataDir, opts.year)
	}
	return pipeline.LoadQueries(list, opts.year, logger)
}

func newProvider(cfg *config.Config, opts *panelsOptions, logger *slog.Logger) (serp.Provider, error) {
	if opts.offline {
		return serp.NewFileProvider(cfg.SERPDir(), opts.year), nil
	}

	if err := config.ValidateApify(cfg); err != nil {
		return nil, err
	}

	fetchCfg := *cfg
	fetchCfg.Fetch.Timeout = cfg.Apify.Timeout
	fetcher, err := newFetcher(&fetchCfg, metrics.SourceSERP, ratelimit.NewLimiter(cfg.Apify.RPS, cfg.Fetch.Jitter), logger)
	if err != nil {
		return nil, err
	}

	var recorder serp.Recorder
	if cfg.Apify.Archive {
		recorder = serp.NewArchive(cfg.SERPDir(), opts.year)
	}

	return serp.NewApify(serp.ApifyConfig{
		Endpoint:         cfg.Apify.Endpoint,
		APIKey:           cfg.Apify.APIKey,
		ResultsPerPage:   cfg.Apify.ResultsPerPage,
		MaxPagesPerQuery: cfg.Apify.MaxPagesPerQuery,
	}, fetcher, recorder, logger)
}
