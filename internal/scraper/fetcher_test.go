package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/reel/internal/bypass"
	"github.com/FranksOps/reel/internal/fingerprint"
	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/pkg/ratelimit"
)

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "reel-test/1.0" {
			t.Errorf("expected configured User-Agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("X-Test", "true")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<table class="wikitable"></table>`))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		UserAgent:   "reel-test/1.0",
		Source:      metrics.SourceWikipedia,
	})
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	res := fetcher.Fetch(context.Background(), ts.URL)

	if res.Error != "" {
		t.Fatalf("expected no fetch error, got %s", res.Error)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if !strings.Contains(string(res.Body), "wikitable") {
		t.Errorf("unexpected body %q", string(res.Body))
	}
	if len(res.Headers["X-Test"]) == 0 || res.Headers["X-Test"][0] != "true" {
		t.Errorf("expected X-Test header 'true', got %v", res.Headers["X-Test"])
	}
	if res.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if res.Method != http.MethodGet {
		t.Errorf("expected GET method, got %s", res.Method)
	}
	if res.ID == "" {
		t.Errorf("expected non-empty UUID")
	}
	if res.DetectedBot {
		t.Errorf("expected no detection, got %s", res.DetectionSrc)
	}
}

func TestFetcher_DefaultUserAgent(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.UserAgent()
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{})
	_ = fetcher.Fetch(context.Background(), ts.URL)

	if got != DefaultUserAgent {
		t.Errorf("expected default user agent, got %q", got)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})

	res := fetcher.Fetch(context.Background(), ts.URL)

	if res.Error == "" || !strings.Contains(res.Error, "request failed") {
		t.Errorf("expected timeout error, got %v", res.Error)
	}
}

func TestFetcher_ErrorOmitsURL(t *testing.T) {
	fetcher, _ := NewFetcher(FetchConfig{Timeout: time.Second})

	res := fetcher.PostJSON(context.Background(), "http://127.0.0.1:1/run?token=secret", map[string]string{}, "")

	if res.Error == "" {
		t.Fatal("expected connection error")
	}
	if strings.Contains(res.Error, "secret") {
		t.Errorf("error leaks the request URL: %s", res.Error)
	}
}

func TestFetcher_Detection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	res := fetcher.Fetch(context.Background(), ts.URL)

	if !res.DetectedBot || res.DetectionSrc != bypass.SourceRateLimited {
		t.Errorf("expected rate limit detection, got %v %q", res.DetectedBot, res.DetectionSrc)
	}
}

func TestFetcher_PostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Queries string `json:"queries"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[{"searchQuery":{"term":"` + body.Queries + `"}}]`))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Source: metrics.SourceSERP})
	res := fetcher.PostJSON(context.Background(), ts.URL, map[string]string{"queries": "Soul movie 2020"}, "text/plain")

	if res.Error != "" || res.StatusCode != http.StatusOK {
		t.Fatalf("unexpected result: status %d, err %s", res.StatusCode, res.Error)
	}
	if res.Method != http.MethodPost {
		t.Errorf("expected POST method, got %s", res.Method)
	}
	if !strings.Contains(string(res.Body), "Soul movie 2020") {
		t.Errorf("unexpected body %s", res.Body)
	}
}

func TestFetcher_LimiterCanceled(t *testing.T) {
	fetcher, _ := NewFetcher(FetchConfig{Limiter: ratelimit.NewLimiter(0.5, 0)})

	ctx := context.Background()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()
	_ = fetcher.Fetch(ctx, ts.URL)

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	res := fetcher.Fetch(ctx, ts.URL)

	if !strings.Contains(res.Error, "rate limiter failed") {
		t.Errorf("expected limiter error, got %q", res.Error)
	}
}

func TestNewFetcher_UnknownProfile(t *testing.T) {
	if _, err := NewFetcher(FetchConfig{Fingerprint: "lynx"}); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}
