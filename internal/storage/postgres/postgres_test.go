package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/FranksOps/reel/internal/storage"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if REEL_TEST_PG_DSN is set
	dsn := os.Getenv("REEL_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: REEL_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	rec := &storage.MovieRecord{
		Query:     "Palm Springs movie 2020",
		Title:     "Palm Springs",
		Genre:     "Comedy",
		Directors: "Max Barbakow",
	}

	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{Query: "Palm Springs movie 2020", Limit: 1})
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Directors != "Max Barbakow" {
		t.Errorf("Expected directors to round trip, got %q", results[0].Directors)
	}
}

func TestSchema(t *testing.T) {
	s := schema([]string{"query", "title"})
	if s == "" {
		t.Fatal("expected schema")
	}
	want := "CREATE TABLE IF NOT EXISTS movie_records (\n\tid UUID PRIMARY KEY,\n\tseq BIGSERIAL,\n\tcreated_at TIMESTAMPTZ NOT NULL,\n\tquery TEXT NOT NULL DEFAULT '',\n\ttitle TEXT NOT NULL DEFAULT ''\n);\nCREATE INDEX IF NOT EXISTS movie_records_query ON movie_records (query);\n"
	if s != want {
		t.Errorf("unexpected schema:\n%s", s)
	}
}
