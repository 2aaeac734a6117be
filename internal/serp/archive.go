package serp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Archive stores raw API responses as <dir>/<year>/<query>.json.
type Archive struct {
	dir  string
	year int
}

var _ Recorder = (*Archive)(nil)

// NewArchive returns an archive for one year's queries under dir.
func NewArchive(dir string, year int) *Archive {
	return &Archive{dir: dir, year: year}
}

// Path is where the response for query is stored.
func (a *Archive) Path(query string) string {
	return filepath.Join(a.dir, strconv.Itoa(a.year), fileName(query))
}

// Record writes raw for query, replacing any earlier response.
func (a *Archive) Record(query string, raw []byte) error {
	path := a.Path(query)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	return nil
}

// FileProvider answers searches from an Archive without calling the API.
type FileProvider struct {
	archive *Archive
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider reads responses archived under dir for year.
func NewFileProvider(dir string, year int) *FileProvider {
	return &FileProvider{archive: NewArchive(dir, year)}
}

// Search reads the archived response for query. A missing file is
// reported as ErrUpstream, the same as an unreachable API.
func (p *FileProvider) Search(ctx context.Context, query string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseFile(p.archive.Path(query), query)
}

// ParseFile parses one archived API response.
func ParseFile(path, query string) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return ParseResponse(query, raw)
}

// fileName keeps a query from escaping its year directory.
func fileName(query string) string {
	return strings.ReplaceAll(query, string(filepath.Separator), " ") + ".json"
}
