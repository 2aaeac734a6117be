package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/reel/internal/storage"
)

func TestSummary(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewSummary(start)

	s.AddSuccess(&storage.MovieRecord{Query: "Tenet movie 2020", Title: "Tenet", Budget: "205 million USD"})
	s.AddSuccess(&storage.MovieRecord{Query: "Soul movie 2020", Title: "Soul"})
	s.AddFailure("Mank movie 2020", "no_panel")
	s.Finish(start.Add(2 * time.Second))

	if s.Queries != 3 || s.Succeeded != 2 || s.Failed != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.FailuresByReason["no_panel"] != 1 {
		t.Errorf("expected 1 no_panel failure, got %d", s.FailuresByReason["no_panel"])
	}
	if len(s.FailedQueries) != 1 || s.FailedQueries[0] != "Mank movie 2020" {
		t.Errorf("unexpected failed queries: %v", s.FailedQueries)
	}
	if s.FieldCoverage[storage.ColTitle] != 2 || s.FieldCoverage[storage.ColBudget] != 1 {
		t.Errorf("unexpected coverage: %v", s.FieldCoverage)
	}
	if _, ok := s.FieldCoverage[storage.ColQuery]; ok {
		t.Errorf("query column must not count towards coverage")
	}
	if got := s.Coverage(storage.ColBudget); got != 0.5 {
		t.Errorf("expected budget coverage 0.5, got %v", got)
	}
	if s.Duration != 2*time.Second {
		t.Errorf("expected 2s duration, got %v", s.Duration)
	}
}

func TestCoverage_NoSuccesses(t *testing.T) {
	s := NewSummary(time.Now())
	if got := s.Coverage(storage.ColTitle); got != 0 {
		t.Errorf("expected 0 coverage, got %v", got)
	}
}

func TestWriteJSON(t *testing.T) {
	s := NewSummary(time.Now())
	s.AddFailure("q", "fetch")

	var buf bytes.Buffer
	if err := WriteJSON(&buf, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), `"queries": 1`) {
		t.Errorf("expected JSON to contain queries: 1, got %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"fetch": 1`) {
		t.Errorf("expected JSON to contain the failure reason")
	}
}

func TestWriteText(t *testing.T) {
	s := NewSummary(time.Now())
	s.Year = 2020
	s.AddSuccess(&storage.MovieRecord{Query: "q", Title: "Tenet"})
	s.AddFailure("x", "blocked")
	s.Finish(time.Now())

	var buf bytes.Buffer
	if err := WriteText(&buf, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Year:          2020", "Queries:       2", "blocked: 1", "title: 1/1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "xml", NewSummary(time.Now())); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
