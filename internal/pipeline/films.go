package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/storage"
	"github.com/FranksOps/reel/internal/storage/csvbackend"
	"github.com/FranksOps/reel/internal/wikitable"
	"github.com/PuerkitoBio/goquery"
)

// PageFetcher fetches a page by URL. *scraper.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) *storage.ScrapeResult
}

// MovieListPath is the film list written for year under dataDir.
func MovieListPath(dataDir string, year int) string {
	return filepath.Join(dataDir, "movie_list", fmt.Sprintf("movies_%d.csv", year))
}

// FilmList scrapes the Wikipedia film lists into one CSV per year.
type FilmList struct {
	fetcher   PageFetcher
	extractor *wikitable.Extractor
	dataDir   string
	logger    *slog.Logger

	// PageURL maps a year to its list page; defaults to wikitable.PageURL.
	PageURL func(year int) string
}

// NewFilmList writes film lists below dataDir.
func NewFilmList(fetcher PageFetcher, dataDir string, logger *slog.Logger) *FilmList {
	if logger == nil {
		logger = slog.Default()
	}
	return &FilmList{
		fetcher:   fetcher,
		extractor: wikitable.NewExtractor(logger),
		dataDir:   dataDir,
		logger:    logger.With("component", "films"),
		PageURL:   wikitable.PageURL,
	}
}

// Run processes years in order and returns the number of rows written per
// year. A year that fails is logged and left out of the result. Only
// context cancellation stops the loop early.
func (f *FilmList) Run(ctx context.Context, years []int) (map[int]int, error) {
	written := make(map[int]int)

	for _, year := range years {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := f.runYear(ctx, year)
		if err != nil {
			f.logger.Error("film list failed", "year", year, "err", err)
			continue
		}
		written[year] = n
		metrics.RecordFilmRows(year, n)
		f.logger.Info("film list written", "year", year, "rows", n, "path", MovieListPath(f.dataDir, year))
	}

	return written, nil
}

func (f *FilmList) runYear(ctx context.Context, year int) (int, error) {
	res := f.fetcher.Fetch(ctx, f.PageURL(year))
	switch {
	case res.Error != "":
		return 0, fmt.Errorf("fetch: %s", res.Error)
	case res.DetectedBot:
		return 0, fmt.Errorf("fetch blocked by %s (status %d)", res.DetectionSrc, res.StatusCode)
	case res.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("fetch: unexpected status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return 0, fmt.Errorf("parse page: %w", err)
	}

	path := MovieListPath(f.dataDir, year)
	n := 0
	for _, row := range f.extractor.ParsePage(doc) {
		if len(row) == 0 {
			continue
		}
		if err := csvbackend.AppendRow(path, row.Values()); err != nil {
			return n, fmt.Errorf("write row: %w", err)
		}
		n++
	}
	return n, nil
}
