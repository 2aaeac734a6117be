// Package wikitable turns Wikipedia "List of American films" tables into
// ordered column/cell rows.
package wikitable

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageURLPrefix is the list page for a year, minus the year itself.
const PageURLPrefix = "https://en.wikipedia.org/wiki/List_of_American_films_of_"

// PageURL returns the Wikipedia list of American films for year.
func PageURL(year int) string {
	return fmt.Sprintf("%s%d", PageURLPrefix, year)
}

// Cell is one named value in a Row.
type Cell struct {
	Column string
	Text   string
}

// Row is an ordered mapping of header name to cell text.
type Row []Cell

// Get returns the text for column and whether it was present.
func (r Row) Get(column string) (string, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Text, true
		}
	}
	return "", false
}

// Values returns the cell texts in column order.
func (r Row) Values() []string {
	vals := make([]string, len(r))
	for i, c := range r {
		vals[i] = c.Text
	}
	return vals
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, c := range r {
		cols[i] = c.Column
	}
	return cols
}

// set overwrites an existing column in place or appends a new one.
func (r Row) set(column, text string) Row {
	for i := range r {
		if r[i].Column == column {
			r[i].Text = text
			return r
		}
	}
	return append(r, Cell{Column: column, Text: text})
}

// Extractor converts wikitables into rows.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an Extractor. A nil logger falls back to slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "wikitable")}
}

// Extract zips every row's td cells to the table's th headers by position.
// Rows with more cells than headers are dropped. Rows with fewer cells yield
// partial rows and rows with no cells yield empty rows; callers filter those.
func (e *Extractor) Extract(table *goquery.Selection) []Row {
	var headers []string
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})

	var rows []Row
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() > len(headers) {
			e.logger.Debug("dropping row with more cells than headers",
				"row", i, "cells", cells.Length(), "headers", len(headers))
			return
		}

		row := make(Row, 0, cells.Length())
		cells.Each(func(j int, td *goquery.Selection) {
			row = row.set(headers[j], strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})

	return rows
}

// ParsePage extracts rows from every table.wikitable on the page, in
// document order.
func (e *Extractor) ParsePage(doc *goquery.Document) []Row {
	var rows []Row
	doc.Find("table.wikitable").Each(func(_ int, table *goquery.Selection) {
		rows = append(rows, e.Extract(table)...)
	})
	return rows
}
