// Package serp fetches Google result pages for film queries.
package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/FranksOps/reel/internal/bypass"
)

var (
	// ErrUpstream means the scraping API could not be reached or answered
	// with a non-2xx status.
	ErrUpstream = errors.New("serp: upstream request failed")
	// ErrMalformedResponse means the response body was not the expected
	// JSON array.
	ErrMalformedResponse = errors.New("serp: malformed response")
	// ErrNoHTML means the response held no result page HTML.
	ErrNoHTML = errors.New("serp: response has no html")
	// ErrBlocked means Google served a captcha or a gateway error page in
	// place of results.
	ErrBlocked = errors.New("serp: blocked")
)

// Page is one search result page.
type Page struct {
	Query string
	HTML  string
	// Raw is the undecoded API response, kept for archiving.
	Raw []byte
}

// Provider returns the result page for a query.
type Provider interface {
	Search(ctx context.Context, query string) (*Page, error)
}

// item is one dataset element of the actor's output. Only the page HTML
// is used; the organic results and related queries are ignored.
type item struct {
	HTML        string `json:"html"`
	SearchQuery struct {
		Term string `json:"term"`
	} `json:"searchQuery"`
}

// ParseResponse decodes a raw API response and returns the first page.
func ParseResponse(query string, raw []byte) (*Page, error) {
	var items []item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(items) == 0 || items[0].HTML == "" {
		return nil, fmt.Errorf("%w for %q", ErrNoHTML, query)
	}

	if blocked, src := bypass.AnalyzeHTML(items[0].HTML, bypass.DefaultDetectors()); blocked {
		return nil, fmt.Errorf("%w: %s page for %q", ErrBlocked, src, query)
	}

	return &Page{Query: query, HTML: items[0].HTML, Raw: raw}, nil
}
