//go:build integration

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/reel/internal/bypass"
	"github.com/FranksOps/reel/internal/fingerprint"
	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/pipeline"
	"github.com/FranksOps/reel/internal/scraper"
	"github.com/FranksOps/reel/internal/serp"
	"github.com/FranksOps/reel/internal/storage"
	"github.com/FranksOps/reel/internal/storage/csvbackend"
	"github.com/FranksOps/reel/pkg/ratelimit"
	"github.com/google/go-cmp/cmp"
)

const filmPage = `<html><body>
<table class="wikitable">
  <tr><th>Opening</th><th>Title</th><th>Studio</th></tr>
  <tr><td>SEPTEMBER</td><td>Tenet</td><td>Warner Bros.</td></tr>
  <tr><td>4</td><td>Mank</td><td>Netflix</td></tr>
  <tr><td>Greed</td><td>Sony Pictures Classics</td></tr>
</table>
</body></html>`

const tenetPanel = `<div data-attrid="title">Tenet</div>` +
	`<div data-attrid="subtitle">PG-13 ‧ 2020 ‧ Action/Sci-fi ‧ 2h 30m</div>` +
	`<div data-attrid="kc:/film/film:director">Director: Christopher Nolan</div>`

const captchaPage = `<html><body><form id="captcha-form">Our systems have detected unusual traffic</form></body></html>`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIntegration_FilmsToPanels(t *testing.T) {
	wiki := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wiki/List_of_American_films_of_2020" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, filmPage)
	}))
	defer wiki.Close()

	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		if r.URL.Query().Get("token") != "test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var input struct {
			Queries string `json:"queries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var html string
		switch input.Queries {
		case "Tenet movie 2020":
			html = tenetPanel
		case "Mank movie 2020":
			html = captchaPage
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"type":"invalid-input","message":"query rejected"}}`)
			return
		}
		items := []map[string]any{{"searchQuery": map[string]string{"term": input.Queries}, "html": html}}
		_ = json.NewEncoder(w).Encode(items)
	}))
	defer api.Close()

	dir := t.TempDir()
	ctx := context.Background()

	// 1. Film list
	wikiFetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Limiter:     ratelimit.NewLimiter(0, 0),
		Source:      metrics.SourceWikipedia,
		Logger:      discard(),
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	films := pipeline.NewFilmList(wikiFetcher, dir, discard())
	films.PageURL = func(year int) string {
		return fmt.Sprintf("%s/wiki/List_of_American_films_of_%d", wiki.URL, year)
	}
	written, err := films.Run(ctx, []int{2020})
	if err != nil {
		t.Fatalf("film list failed: %v", err)
	}
	if written[2020] != 3 {
		t.Fatalf("expected 3 film rows, got %v", written)
	}

	queries, err := pipeline.LoadQueries(pipeline.MovieListPath(dir, 2020), 2020, discard())
	if err != nil {
		t.Fatalf("failed to load queries: %v", err)
	}
	if diff := cmp.Diff([]string{"Tenet movie 2020", "Mank movie 2020", "Greed movie 2020"}, queries); diff != "" {
		t.Fatalf("queries mismatch (-want +got):\n%s", diff)
	}

	// 2. Panels through the API
	apiFetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout: 5 * time.Second,
		Source:  metrics.SourceSERP,
		Logger:  discard(),
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	serpDir := filepath.Join(dir, "serp_results")
	apify, err := serp.NewApify(serp.ApifyConfig{
		Endpoint: api.URL + "/v2/actor-tasks/task/run-sync-get-dataset-items?token=",
		APIKey:   "test-token",
	}, apiFetcher, serp.NewArchive(serpDir, 2020), discard())
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	backend, err := csvbackend.New(filepath.Join(dir, "structured_movie_data", "movie_data_2020.csv"))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	failedPath := filepath.Join(dir, "failed_queries", "failed_queries.csv")
	p := pipeline.New(apify, backend, pipeline.NewFailedLog(failedPath), discard())
	p.Year = 2020

	summary, err := p.Run(ctx, queries)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if got := atomic.LoadInt32(&apiCalls); got != 3 {
		t.Errorf("expected one API call per query, got %d", got)
	}
	wantReasons := map[string]int{pipeline.ReasonBlocked: 1, pipeline.ReasonFetch: 1}
	if diff := cmp.Diff(wantReasons, summary.FailuresByReason); diff != "" {
		t.Errorf("failure reasons mismatch (-want +got):\n%s", diff)
	}

	records, err := backend.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Title != "Tenet" || rec.Genre != "Action/Sci-fi" || rec.Directors != "Christopher Nolan" {
		t.Errorf("unexpected record: %+v", rec)
	}

	// Only 2xx responses are archived, captcha pages included.
	for q, want := range map[string]bool{"Tenet movie 2020": true, "Mank movie 2020": true, "Greed movie 2020": false} {
		_, err := os.Stat(filepath.Join(serpDir, "2020", q+".json"))
		if got := err == nil; got != want {
			t.Errorf("archive for %q: exists=%v, want %v", q, got, want)
		}
	}

	// 3. Retry offline from the archive.
	retry, err := pipeline.TakeFailed(failedPath, pipeline.ForYear(2020))
	if err != nil {
		t.Fatalf("failed to take failed queries: %v", err)
	}
	if diff := cmp.Diff([]string{"Mank movie 2020", "Greed movie 2020"}, retry); diff != "" {
		t.Errorf("failed queries mismatch (-want +got):\n%s", diff)
	}

	offline := pipeline.New(serp.NewFileProvider(serpDir, 2020), backend, pipeline.NewFailedLog(failedPath), discard())
	summary, err = offline.Run(ctx, retry)
	if err != nil {
		t.Fatalf("offline run failed: %v", err)
	}
	if summary.Succeeded != 0 || summary.FailuresByReason[pipeline.ReasonBlocked] != 1 || summary.FailuresByReason[pipeline.ReasonFetch] != 1 {
		t.Errorf("unexpected offline summary: %+v", summary)
	}
	if got := atomic.LoadInt32(&apiCalls); got != 3 {
		t.Errorf("offline run must not call the API, got %d calls", got)
	}
}

func TestIntegration_BotDetection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><body>cf-browser-verification</body></html>`)
	}))
	defer ts.Close()

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{Timeout: 5 * time.Second, Logger: discard()})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	res := fetcher.Fetch(context.Background(), ts.URL)
	if res.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", res.StatusCode)
	}
	if !res.DetectedBot || res.DetectionSrc != bypass.SourceCloudflare {
		t.Errorf("expected Cloudflare bot detection, got %v %q", res.DetectedBot, res.DetectionSrc)
	}

	// A blocked Wikipedia page is a failed year, not an empty list.
	films := pipeline.NewFilmList(fetcher, t.TempDir(), discard())
	films.PageURL = func(int) string { return ts.URL }
	written, err := films.Run(context.Background(), []int{2020})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(written) != 0 {
		t.Errorf("expected no rows for a blocked page, got %v", written)
	}
}

func TestIntegration_CookieJarPersistence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "123456", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session_id")
		if err != nil || cookie.Value != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      5 * time.Second,
		UseCookieJar: true,
		Logger:       discard(),
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	ctx := context.Background()
	if res := fetcher.Fetch(ctx, ts.URL+"/login"); res.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", res.StatusCode, res.Error)
	}
	if res := fetcher.Fetch(ctx, ts.URL+"/protected"); res.StatusCode != http.StatusOK {
		t.Errorf("expected 200 OK for /protected due to cookie jar, got %d", res.StatusCode)
	}
}
