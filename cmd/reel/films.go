package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/pipeline"
	"github.com/FranksOps/reel/pkg/ratelimit"
)

// filmsCmd creates the "films" subcommand.
func filmsCmd() *cobra.Command {
	var from, to int

	cmd := &cobra.Command{
		Use:   "films",
		Short: "Download the Wikipedia film lists for a range of years",
		Long: `Fetch "List of American films of <year>" for every year in [from, to]
and append the table rows to <data_dir>/movie_list/movies_<year>.csv.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from > to {
				return fmt.Errorf("--from %d is after --to %d", from, to)
			}

			cfg, logger, err := loadConfig(nil)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(logger)
			defer cancel()

			fetcher, err := newFetcher(cfg, metrics.SourceWikipedia, ratelimit.NewLimiter(cfg.Fetch.RPS, cfg.Fetch.Jitter), logger)
			if err != nil {
				return err
			}

			years := make([]int, 0, to-from+1)
			for y := from; y <= to; y++ {
				years = append(years, y)
			}

			written, err := pipeline.NewFilmList(fetcher, cfg.DataDir, logger).Run(ctx, years)
			for _, y := range years {
				if n, ok := written[y]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d rows\t%s\n", y, n, pipeline.MovieListPath(cfg.DataDir, y))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\tfailed\n", y)
				}
			}
			return err
		},
	}

	year := time.Now().Year()
	cmd.Flags().IntVar(&from, "from", year, "first year")
	cmd.Flags().IntVar(&to, "to", year, "last year (inclusive)")

	return cmd
}
