package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FailedLog appends queries that did not produce a record, one per line.
type FailedLog struct {
	path string
}

// NewFailedLog returns a log writing to path. Nothing is created until the
// first Append.
func NewFailedLog(path string) *FailedLog {
	return &FailedLog{path: path}
}

// Path is the file the log appends to.
func (l *FailedLog) Path() string {
	return l.path
}

// Append records query. The file is opened and closed on every call so an
// interrupted run never loses earlier lines.
func (l *FailedLog) Append(query string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create failed-queries dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open failed-queries file: %w", err)
	}
	if _, err := f.WriteString(query + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append failed query: %w", err)
	}
	return f.Close()
}

// ReadFailed returns the queries in path in first-seen order with
// duplicates and blank lines removed. A missing file yields no queries.
func ReadFailed(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open failed-queries file: %w", err)
	}
	defer f.Close()

	seen := make(map[string]struct{})
	var queries []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read failed-queries file: %w", err)
	}
	return queries, nil
}

// AppendAll records each query in order.
func (l *FailedLog) AppendAll(queries []string) error {
	for _, q := range queries {
		if err := l.Append(q); err != nil {
			return err
		}
	}
	return nil
}

// ForYear selects the queries built by title.Query for year.
func ForYear(year int) func(query string) bool {
	suffix := fmt.Sprintf(" movie %d", year)
	return func(query string) bool {
		return strings.HasSuffix(query, suffix)
	}
}

// TakeFailed removes the queries selected by keep from the log at path and
// returns them, deduplicated. A nil keep selects every query. The previous
// log is moved aside to path+".retried" and the queries that were not
// selected are written back to path, so they stay available for a later
// retry.
func TakeFailed(path string, keep func(query string) bool) ([]string, error) {
	queries, err := ReadFailed(path)
	if err != nil || len(queries) == 0 {
		return nil, err
	}

	var taken, rest []string
	for _, q := range queries {
		if keep == nil || keep(q) {
			taken = append(taken, q)
		} else {
			rest = append(rest, q)
		}
	}
	if len(taken) == 0 {
		return nil, nil
	}

	if err := os.Rename(path, path+".retried"); err != nil {
		return nil, fmt.Errorf("failed to rotate failed-queries file: %w", err)
	}
	if err := NewFailedLog(path).AppendAll(rest); err != nil {
		return nil, fmt.Errorf("failed to restore remaining failed queries: %w", err)
	}
	return taken, nil
}
