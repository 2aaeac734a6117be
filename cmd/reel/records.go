package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/FranksOps/reel/internal/storage"
)

// recordsCmd creates the "records" subcommand.
func recordsCmd() *cobra.Command {
	var (
		year   int
		filter storage.Filter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List stored movie records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(nil)
			if err != nil {
				return err
			}

			if year == 0 && cfg.Storage.Path == "" && (cfg.Storage.Type == "csv" || cfg.Storage.Type == "json") {
				return fmt.Errorf("--year is required for %s storage", cfg.Storage.Type)
			}

			ctx, cancel := signalContext(logger)
			defer cancel()

			backend, err := openBackend(ctx, cfg, year)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer backend.Close()

			records, err := backend.Query(ctx, filter)
			if err != nil {
				return fmt.Errorf("query records: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				for _, r := range records {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}

			t := table.NewWriter()
			t.SetStyle(table.StyleRounded)
			t.SetOutputMirror(out)
			t.AppendHeader(table.Row{"Title", "Year", "Rating", "Genre", "Duration", "Query"})
			for _, r := range records {
				t.AppendRow(table.Row{r.Title, r.ReleaseYear, r.MaturityRating, r.Genre, r.Duration, r.Query})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year whose record file to read (csv and json storage)")
	cmd.Flags().StringVar(&filter.Title, "title", "", "only records with this exact title")
	cmd.Flags().StringVar(&filter.Query, "query", "", "only records for this exact query")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "maximum records to print (0 = all)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print NDJSON instead of a table")

	return cmd
}
