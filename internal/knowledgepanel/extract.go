// Package knowledgepanel extracts film metadata from the knowledge panel of
// a Google search results page.
//
// Every field is looked up independently by its data-attrid marker. A
// missing marker, or one whose markup does not match what the field rule
// expects, leaves that field empty and never affects the others.
package knowledgepanel

import (
	"fmt"
	"log/slog"

	"github.com/FranksOps/reel/internal/storage"
)

// Extractor applies the field rules to a SERP document.
type Extractor struct {
	logger *slog.Logger
	rules  []rule
}

// NewExtractor creates an Extractor with the film panel rules. A nil logger
// falls back to slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		logger: logger.With("component", "knowledgepanel"),
		rules:  defaultRules(),
	}
}

// Extract builds a MovieRecord for query from doc. It never fails: every
// field whose node is absent or malformed is "".
func (e *Extractor) Extract(doc Document, query string) *storage.MovieRecord {
	rec := &storage.MovieRecord{Query: query}

	for _, r := range e.rules {
		node, ok := doc.Find(AttrID, r.attrid)
		if !ok {
			continue
		}

		vals, err := r.extract(node)
		if err != nil {
			e.logger.Debug("field extraction failed", "attrid", r.attrid, "query", query, "err", err)
			continue
		}

		for col, v := range vals {
			if err := rec.Set(col, v); err != nil {
				e.logger.Warn("rule produced unknown column", "attrid", r.attrid, "column", col)
			}
		}
	}

	return rec
}

// ExtractHTML parses html and extracts the record for query.
func (e *Extractor) ExtractHTML(html, query string) (*storage.MovieRecord, error) {
	doc, err := ParseHTML(html)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", query, err)
	}
	return e.Extract(doc, query), nil
}

// Fields returns the columns that rules can populate, in rule order.
func (e *Extractor) Fields() []string {
	var cols []string
	for _, r := range e.rules {
		cols = append(cols, r.columns...)
	}
	return cols
}
