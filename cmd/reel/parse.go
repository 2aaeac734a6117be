package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/reel/internal/knowledgepanel"
	"github.com/FranksOps/reel/internal/serp"
)

// parseCmd creates the "parse" subcommand.
func parseCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "parse <file.json>",
		Short: "Extract the knowledge panel from one archived API response",
		Long: `Parse a response saved under <data_dir>/serp_results and print the
extracted record as JSON. The query defaults to the file name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfig(nil)
			if err != nil {
				return err
			}

			path := args[0]
			if query == "" {
				query = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			page, err := serp.ParseFile(path, query)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			rec, err := knowledgepanel.NewExtractor(logger).ExtractHTML(page.HTML, query)
			if err != nil {
				return fmt.Errorf("extract %s: %w", path, err)
			}
			if !rec.HasPanel() {
				logger.Warn("no knowledge panel found", "query", query)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "query recorded on the output")

	return cmd
}
