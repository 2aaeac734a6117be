package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/reel/internal/bypass"
	"github.com/FranksOps/reel/internal/fingerprint"
	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/storage"
	"github.com/FranksOps/reel/pkg/httpclient"
	"github.com/FranksOps/reel/pkg/ratelimit"
	"github.com/google/uuid"
)

// DefaultUserAgent identifies the tool to Wikipedia, whose policy asks for
// a descriptive agent with contact details rather than a browser string.
const DefaultUserAgent = "reel/1.0 (https://github.com/FranksOps/reel)"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	UserAgent    string
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	// Source labels the fetch metrics, e.g. metrics.SourceWikipedia.
	Source string
	// Detectors default to bypass.DefaultDetectors.
	Detectors []bypass.Detector
	Logger    *slog.Logger
}

// Fetcher performs single HTTP fetches and records each one as a
// storage.ScrapeResult.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Source == "" {
		cfg.Source = "http"
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		UserAgent:    cfg.UserAgent,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger.With("component", "fetcher", "source", cfg.Source),
	}, nil
}

// Fetch executes a GET request to the target URL. Transport failures are
// reported on ScrapeResult.Error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) *storage.ScrapeResult {
	return f.do(ctx, http.MethodGet, targetURL, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
		return f.client.Do(ctx, req)
	})
}

// PostJSON POSTs body as JSON to the target URL, with the same result
// conventions as Fetch.
func (f *Fetcher) PostJSON(ctx context.Context, targetURL string, body any, accept string) *storage.ScrapeResult {
	return f.do(ctx, http.MethodPost, targetURL, func() (*http.Response, error) {
		return f.client.PostJSON(ctx, targetURL, body, accept)
	})
}

func (f *Fetcher) do(ctx context.Context, method, targetURL string, send func() (*http.Response, error)) *storage.ScrapeResult {
	result := &storage.ScrapeResult{
		ID:     uuid.New().String(),
		URL:    targetURL,
		Method: method,
	}

	if err := f.config.Limiter.Wait(ctx); err != nil {
		result.CreatedAt = time.Now().UTC()
		result.Error = fmt.Sprintf("rate limiter failed: %v", err)
		return result
	}

	start := time.Now()
	result.CreatedAt = start.UTC()

	resp, err := send()
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", stripURL(err))
		result.Duration = time.Since(start)
		f.finish(result)
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.Body = body
	result.Duration = time.Since(start)

	bypass.Analyze(result, f.config.Detectors)
	f.finish(result)
	return result
}

func (f *Fetcher) finish(res *storage.ScrapeResult) {
	metrics.RecordFetch(f.config.Source, res)

	// URLs stay out of the log: the SERP endpoint carries the API token.
	switch {
	case res.Error != "":
		f.logger.Warn("fetch failed", "method", res.Method, "err", res.Error, "duration", res.Duration)
	case res.DetectedBot:
		f.logger.Warn("fetch blocked", "method", res.Method, "status", res.StatusCode, "detection", res.DetectionSrc)
	default:
		f.logger.Debug("fetched", "method", res.Method, "status", res.StatusCode, "bytes", len(res.Body), "duration", res.Duration)
	}
}

// stripURL drops the request URL from transport errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
