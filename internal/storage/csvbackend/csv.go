package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/FranksOps/reel/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

// csvBackend opens the file for every Save and closes it again, so no
// handle outlives a single record.
type csvBackend struct {
	mu   sync.Mutex
	path string
}

// New creates a new CSV-backed storage.Backend. The header row is written
// once, when the file is first created or found empty.
func New(filePath string) (storage.Backend, error) {
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat csv: %w", err)
	}

	if info.Size() == 0 {
		if err := writeRecord(f, storage.Columns()); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &csvBackend{path: filePath}, nil
}

func (b *csvBackend) Save(ctx context.Context, record *storage.MovieRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}

	if err := writeRecord(f, record.Values()); err != nil {
		f.Close()
		return fmt.Errorf("append csv row: %w", err)
	}

	return f.Close()
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.MovieRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.MovieRecord{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var allFiltered []*storage.MovieRecord

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		rec, err := storage.MovieRecordFromValues(header, row)
		if err != nil {
			continue // skip malformed rows
		}

		if filter.Match(rec) {
			allFiltered = append(allFiltered, rec)
		}
	}

	// Newest first
	for i, j := 0, len(allFiltered)-1; i < j; i, j = i+1, j-1 {
		allFiltered[i], allFiltered[j] = allFiltered[j], allFiltered[i]
	}

	return storage.Page(allFiltered, filter), nil
}

func (b *csvBackend) Close() error {
	return nil
}

// AppendRow appends a single headerless row to the CSV file at path,
// creating the file and its directory if needed. Used for the Wikipedia
// film lists, whose column set varies from table to table.
func AppendRow(path string, values []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}

	if err := writeRecord(f, values); err != nil {
		f.Close()
		return fmt.Errorf("append csv row: %w", err)
	}

	return f.Close()
}

func writeRecord(w io.Writer, record []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(record); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
