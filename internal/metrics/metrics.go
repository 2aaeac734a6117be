package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/reel/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch sources.
const (
	SourceWikipedia = "wikipedia"
	SourceSERP      = "serp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_fetch_requests_total",
			Help: "Total number of HTTP fetches executed",
		},
		[]string{"source", "status", "detected", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reel_fetch_duration_seconds",
			Help:    "Duration of HTTP fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
		[]string{"source"},
	)

	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_queries_total",
			Help: "Search queries processed, by outcome",
		},
		[]string{"outcome"},
	)

	PanelFieldsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_panel_fields_total",
			Help: "Knowledge panel fields found non-empty, by column",
		},
		[]string{"column"},
	)

	FilmRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reel_film_rows_total",
			Help: "Wikipedia film list rows written, by year",
		},
		[]string{"year"},
	)
)

// RecordFetch updates the fetch metrics for source given a ScrapeResult.
func RecordFetch(source string, res *storage.ScrapeResult) {
	if res == nil {
		return
	}

	detectedStr := "false"
	if res.DetectedBot {
		detectedStr = "true"
	}

	statusStr := strconv.Itoa(res.StatusCode)
	if res.Error != "" {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(source, statusStr, detectedStr, res.DetectionSrc).Inc()
	FetchDuration.WithLabelValues(source).Observe(res.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(source).Add(float64(len(res.Body)))
}

// RecordQuery counts one processed query. outcome is "ok" or a failure
// reason.
func RecordQuery(outcome string) {
	QueriesTotal.WithLabelValues(outcome).Inc()
}

// RecordPanel counts the non-empty fields of rec, excluding the query.
func RecordPanel(rec *storage.MovieRecord) {
	if rec == nil {
		return
	}
	for _, col := range rec.Columns() {
		if col == storage.ColQuery || rec.Get(col) == "" {
			continue
		}
		PanelFieldsTotal.WithLabelValues(col).Inc()
	}
}

// RecordFilmRows counts rows written to a year's film list.
func RecordFilmRows(year, n int) {
	FilmRowsTotal.WithLabelValues(strconv.Itoa(year)).Add(float64(n))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds the metrics port without serving yet. Port 0 picks a free
// port, reported by Addr.
func Listen(port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics: listen: %w", err)
	}

	return &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
		logger: logger.With("component", "metrics"),
	}, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until the server is stopped. A clean Stop returns nil.
func (s *Server) Serve() error {
	s.logger.Info("serving metrics", "addr", s.Addr())
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve: %w", err)
	}
	return nil
}

// Start listens on port and serves /metrics in the background.
func Start(port int, logger *slog.Logger) (*Server, error) {
	s, err := Listen(port, logger)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(); err != nil {
			s.logger.Error("metrics server failed", "err", err)
		}
	}()
	return s, nil
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
