// Package title recovers movie titles from raw film-list CSV lines and
// turns them into search queries.
//
// The recovery is a heuristic over a naive comma split: a title with an
// embedded comma, or a table layout with an unseen annotation column,
// comes back wrong. No confidence is computed.
package title

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNoTitle is returned when no token, or only a blank one, is left once
// the leading annotation columns have been skipped.
var ErrNoTitle = errors.New("no title token")

var months = []string{
	"JANUARY", "FEBRUARY", "MARCH", "APRIL", "MAY", "JUNE",
	"JULY", "AUGUST", "SEPTEMBER", "OCTOBER", "NOVEMBER", "DECEMBER",
}

// annotationCodes mark award or release notes in the leading columns of
// some year tables.
var annotationCodes = map[string]struct{}{
	"L": {},
	"W": {},
	"‡": {},
	"R": {},
}

// rule inspects the leading token and, when it matches, returns the
// remaining tokens.
type rule struct {
	name  string
	match func(token string) bool
	apply func(tokens []string) []string
}

// rules run in order against whatever token currently leads.
var rules = []rule{
	{name: "release-month", match: hasMonth, apply: dropOne},
	{name: "annotation", match: isAnnotationOrNumber, apply: skipAnnotations},
}

// Normalize returns the title token from one raw film-list line. Unlike
// the raw comma-split token, the result has surrounding whitespace
// trimmed; Query trims as well, so the search query is the same either
// way. Quote artifacts are left alone.
func Normalize(line string) (string, error) {
	tokens := strings.Split(strings.TrimRight(line, "\r\n"), ",")

	for _, r := range rules {
		if len(tokens) == 0 {
			break
		}
		if r.match(tokens[0]) {
			tokens = r.apply(tokens)
		}
	}

	if len(tokens) == 0 || strings.TrimSpace(tokens[0]) == "" {
		return "", fmt.Errorf("%w in %q", ErrNoTitle, line)
	}
	return strings.TrimSpace(tokens[0]), nil
}

// Query builds the search query for a title released in year.
func Query(title string, year int) string {
	t := strings.ReplaceAll(title, "/", " ")
	return strings.TrimSpace(fmt.Sprintf("%s movie %d", t, year))
}

// hasMonth reports whether token is a release-date column: a month name
// with a day number ("March 12", "APRIL 3") or a bare upper-case month
// ("JANUARY"). Titles that merely start with a month word, such as
// "August Rush" or "June", are not matched.
func hasMonth(token string) bool {
	token = strings.TrimSpace(token)
	words := strings.Fields(strings.ToUpper(token))
	found := false
	for _, word := range words {
		for _, m := range months {
			if word == m {
				found = true
			}
		}
	}
	if !found {
		return false
	}
	if strings.IndexFunc(token, unicode.IsDigit) >= 0 {
		return true
	}
	return len(words) == 1 && token == strings.ToUpper(token)
}

func isAnnotation(token string) bool {
	_, ok := annotationCodes[strings.TrimSpace(token)]
	return ok
}

func isNumeric(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isAnnotationOrNumber(token string) bool {
	return isNumeric(token) || isAnnotation(token)
}

func dropOne(tokens []string) []string {
	return tokens[1:]
}

// skipAnnotations drops the leading token and one further annotation code
// if it immediately follows.
func skipAnnotations(tokens []string) []string {
	tokens = tokens[1:]
	if len(tokens) > 0 && isAnnotation(tokens[0]) {
		tokens = tokens[1:]
	}
	return tokens
}
