package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/reel/internal/storage"
)

// Summary aggregates the outcome of one panels run.
type Summary struct {
	Year             int            `json:"year,omitempty"`
	Queries          int            `json:"queries"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	FailuresByReason map[string]int `json:"failures_by_reason"`
	FailedQueries    []string       `json:"failed_queries,omitempty"`
	// FieldCoverage counts, per column, the saved records where it was non-empty.
	FieldCoverage map[string]int `json:"field_coverage"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Duration      time.Duration  `json:"duration"`
}

// NewSummary starts a summary at start.
func NewSummary(start time.Time) *Summary {
	return &Summary{
		FailuresByReason: make(map[string]int),
		FieldCoverage:    make(map[string]int),
		StartTime:        start,
	}
}

// AddSuccess records a saved record and its non-empty fields.
func (s *Summary) AddSuccess(rec *storage.MovieRecord) {
	s.Queries++
	s.Succeeded++
	if rec == nil {
		return
	}
	for _, col := range rec.Columns() {
		if col != storage.ColQuery && rec.Get(col) != "" {
			s.FieldCoverage[col]++
		}
	}
}

// AddFailure records a query that ended in the failed-queries file.
func (s *Summary) AddFailure(query, reason string) {
	s.Queries++
	s.Failed++
	s.FailuresByReason[reason]++
	s.FailedQueries = append(s.FailedQueries, query)
}

// Finish stamps the end time and duration.
func (s *Summary) Finish(end time.Time) {
	s.EndTime = end
	s.Duration = end.Sub(s.StartTime)
}

// Coverage returns the share of saved records with col populated, in [0,1].
func (s *Summary) Coverage(col string) float64 {
	if s.Succeeded == 0 {
		return 0
	}
	return float64(s.FieldCoverage[col]) / float64(s.Succeeded)
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const textTmpl = `Reel Run Summary
----------------
{{- if .Year}}
Year:          {{.Year}}
{{- end}}
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Queries:       {{.Queries}}
Succeeded:     {{.Succeeded}}
Failed:        {{.Failed}}

Failures:
{{- range $reason, $count := .FailuresByReason}}
  {{$reason}}: {{$count}}
{{- else}}
  None
{{- end}}

Field Coverage:
{{- range $col, $count := .FieldCoverage}}
  {{$col}}: {{$count}}/{{$.Succeeded}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary *Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	return nil
}

// Write dispatches on format: "json" or "text".
func Write(w io.Writer, format string, summary *Summary) error {
	switch format {
	case "json":
		return WriteJSON(w, summary)
	case "text", "":
		return WriteText(w, summary)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
