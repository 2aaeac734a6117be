package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/FranksOps/reel/internal/metrics"
	"github.com/FranksOps/reel/internal/scraper"
	"github.com/google/go-cmp/cmp"
)

const filmPage2020 = `<html><body>
<table class="wikitable">
  <tr><th>Opening</th><th>Title</th><th>Production company</th></tr>
  <tr><td>JANUARY</td><td>The Grudge</td><td>Sony Pictures</td></tr>
  <tr><td>10</td><td>Underwater</td><td>20th Century Fox, Chernin</td></tr>
</table>
<table class="navbox"><tr><td>ignored</td></tr></table>
<table class="wikitable sortable">
  <tr><th>Title</th><th>Studio</th></tr>
  <tr><td>Tenet</td><td>Warner Bros.</td></tr>
  <tr><td>Too</td><td>many</td><td>cells</td></tr>
</table>
</body></html>`

func TestFilmList_Run(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wiki/List_of_American_films_of_2020":
			_, _ = w.Write([]byte(filmPage2020))
		case "/wiki/List_of_American_films_of_2021":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{Source: metrics.SourceWikipedia})
	if err != nil {
		t.Fatalf("Failed to create fetcher: %v", err)
	}

	dir := t.TempDir()
	films := NewFilmList(fetcher, dir, nil)
	films.PageURL = func(year int) string {
		return fmt.Sprintf("%s/wiki/List_of_American_films_of_%d", ts.URL, year)
	}

	written, err := films.Run(context.Background(), []int{2021, 2020})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(map[int]int{2020: 3}, written); diff != "" {
		t.Errorf("rows written mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(MovieListPath(dir, 2020))
	if err != nil {
		t.Fatalf("Failed to read film list: %v", err)
	}
	want := "JANUARY,The Grudge,Sony Pictures\n" +
		"10,Underwater,\"20th Century Fox, Chernin\"\n" +
		"Tenet,Warner Bros.\n"
	if string(data) != want {
		t.Errorf("unexpected film list:\n%s\nwant:\n%s", data, want)
	}

	if _, err := os.Stat(MovieListPath(dir, 2021)); !os.IsNotExist(err) {
		t.Errorf("expected no file for the failed year, got %v", err)
	}
}

func TestFilmList_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher, _ := scraper.NewFetcher(scraper.FetchConfig{})
	_, err := NewFilmList(fetcher, t.TempDir(), nil).Run(ctx, []int{2020})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestMovieListPath(t *testing.T) {
	if got := MovieListPath("data", 1999); got != filepath.Join("data", "movie_list", "movies_1999.csv") {
		t.Errorf("unexpected path %q", got)
	}
}
