package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/FranksOps/reel/internal/storage"
)

// Poster sends a JSON POST and records the exchange. *scraper.Fetcher
// satisfies it.
type Poster interface {
	PostJSON(ctx context.Context, url string, body any, accept string) *storage.ScrapeResult
}

// Recorder receives every 2xx API response body before it is parsed.
type Recorder interface {
	Record(query string, raw []byte) error
}

// ApifyConfig configures the Apify Google Search actor task.
type ApifyConfig struct {
	// Endpoint is the run-sync-get-dataset-items URL up to and including
	// "token="; the API key is appended verbatim.
	Endpoint         string
	APIKey           string
	ResultsPerPage   int
	MaxPagesPerQuery int
}

// apifyInput overrides the actor task's input for one run.
type apifyInput struct {
	Queries                  string `json:"queries"`
	ResultsPerPage           int    `json:"resultsPerPage"`
	MaxPagesPerQuery         int    `json:"maxPagesPerQuery"`
	SaveHTML                 bool   `json:"saveHtml"`
	SaveHTMLToKeyValueStore  bool   `json:"saveHtmlToKeyValueStore"`
	MobileResults            bool   `json:"mobileResults"`
	IncludeUnfilteredResults bool   `json:"includeUnfilteredResults"`
}

type apifyError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Apify runs the Google Search actor task synchronously, one query per run.
type Apify struct {
	cfg      ApifyConfig
	poster   Poster
	recorder Recorder
	logger   *slog.Logger
}

var _ Provider = (*Apify)(nil)

// NewApify validates cfg and returns a provider posting through p. A nil
// recorder disables archiving.
func NewApify(cfg ApifyConfig, p Poster, recorder Recorder, logger *slog.Logger) (*Apify, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("serp: apify endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("serp: apify api key is required")
	}
	if p == nil {
		return nil, errors.New("serp: poster is required")
	}
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 10
	}
	if cfg.MaxPagesPerQuery <= 0 {
		cfg.MaxPagesPerQuery = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Apify{
		cfg:      cfg,
		poster:   p,
		recorder: recorder,
		logger:   logger.With("component", "apify"),
	}, nil
}

// Search posts query to the actor task and returns the first result page.
func (a *Apify) Search(ctx context.Context, query string) (*Page, error) {
	input := apifyInput{
		Queries:          query,
		ResultsPerPage:   a.cfg.ResultsPerPage,
		MaxPagesPerQuery: a.cfg.MaxPagesPerQuery,
		SaveHTML:         true,
	}

	res := a.poster.PostJSON(ctx, a.cfg.Endpoint+a.cfg.APIKey, input, "text/plain")
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, res.Error)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		if res.DetectedBot {
			return nil, fmt.Errorf("%w: %s (status %d)", ErrBlocked, res.DetectionSrc, res.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d%s", ErrUpstream, res.StatusCode, upstreamMessage(res.Body))
	}

	if a.recorder != nil {
		if err := a.recorder.Record(query, res.Body); err != nil {
			// Archiving is best effort; the page is still usable.
			a.logger.Warn("failed to archive response", "query", query, "err", err)
		}
	}

	return ParseResponse(query, res.Body)
}

// upstreamMessage pulls the message out of an Apify error body.
func upstreamMessage(body []byte) string {
	var e apifyError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		return ""
	}
	return ": " + strings.TrimSpace(e.Error.Type+" "+e.Error.Message)
}
