// Package pipeline runs the two scraping passes: Wikipedia film lists into
// per-year CSVs, and search queries into knowledge panel records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/reel/internal/knowledgepanel"
	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/report"
	"github.com/FranksOps/reel/internal/serp"
	"github.com/FranksOps/reel/internal/storage"
)

var (
	// ErrNoPanel means the result page carried none of the panel fields.
	ErrNoPanel = errors.New("no knowledge panel")
	// ErrPersist wraps backend failures while saving a record.
	ErrPersist = errors.New("persist record")
)

// Failure reasons reported in logs, metrics and the run summary.
const (
	ReasonFetch     = "fetch"
	ReasonBlocked   = "blocked"
	ReasonMalformed = "malformed"
	ReasonNoPanel   = "no_panel"
	ReasonPersist   = "persist"
)

// Classify maps a per-query error to its failure reason.
func Classify(err error) string {
	switch {
	case errors.Is(err, serp.ErrBlocked):
		return ReasonBlocked
	case errors.Is(err, serp.ErrMalformedResponse), errors.Is(err, serp.ErrNoHTML):
		return ReasonMalformed
	case errors.Is(err, ErrNoPanel):
		return ReasonNoPanel
	case errors.Is(err, ErrPersist):
		return ReasonPersist
	default:
		return ReasonFetch
	}
}

// Pipeline turns search queries into saved MovieRecords, one at a time.
type Pipeline struct {
	provider  serp.Provider
	extractor *knowledgepanel.Extractor
	backend   storage.Backend
	failed    *FailedLog
	logger    *slog.Logger

	// Year is copied into the run summary.
	Year int
	now  func() time.Time
}

// New builds a Pipeline. Queries that fail for any reason are appended to
// failed.
func New(provider serp.Provider, backend storage.Backend, failed *FailedLog, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		provider:  provider,
		extractor: knowledgepanel.NewExtractor(logger),
		backend:   backend,
		failed:    failed,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
}

// Run processes queries strictly in order. Every per-query failure (fetch,
// blocked, malformed, no_panel, persist) is recorded in the failed-queries
// log and the loop moves on; none of them stops the run.
//
// Run returns early only when ctx is done or the failed-queries log itself
// cannot be written. The summary then covers the queries processed so far,
// so summary.Queries is the number of leading queries that were handled.
func (p *Pipeline) Run(ctx context.Context, queries []string) (*report.Summary, error) {
	summary := report.NewSummary(p.now())
	summary.Year = p.Year
	defer func() { summary.Finish(p.now()) }()

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run canceled", "processed", i, "remaining", len(queries)-i)
			return summary, err
		}

		rec, err := p.process(ctx, q)
		if err != nil {
			// A query abandoned mid-flight by cancellation is neither a
			// success nor a failure.
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}

			reason := Classify(err)
			p.logger.Warn("query failed", "query", q, "reason", reason, "err", err)
			metrics.RecordQuery(reason)
			summary.AddFailure(q, reason)

			if ferr := p.failed.Append(q); ferr != nil {
				return summary, fmt.Errorf("record failed query %q: %w", q, ferr)
			}
			continue
		}

		p.logger.Info("query saved", "query", q, "title", rec.Title, "n", i+1, "of", len(queries))
		metrics.RecordQuery("ok")
		metrics.RecordPanel(rec)
		summary.AddSuccess(rec)
	}

	return summary, nil
}

// process is the single fault boundary for one query: search, extract, save.
func (p *Pipeline) process(ctx context.Context, query string) (*storage.MovieRecord, error) {
	page, err := p.provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	rec, err := p.extractor.ExtractHTML(page.HTML, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serp.ErrMalformedResponse, err)
	}
	if !rec.HasPanel() {
		return nil, ErrNoPanel
	}

	if err := p.backend.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return rec, nil
}
