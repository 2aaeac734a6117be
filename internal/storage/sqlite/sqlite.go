package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/reel/internal/storage"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db      *sql.DB
	columns []string
}

// New creates a new SQLite-backed storage.Backend.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	cols := sqlColumns()
	if _, err := db.Exec(schema(cols)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db, columns: cols}, nil
}

// sqlColumns lower-cases the record columns so identifiers are unambiguous.
func sqlColumns() []string {
	cols := storage.Columns()
	for i, c := range cols {
		cols[i] = strings.ToLower(c)
	}
	return cols
}

func schema(cols []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS movie_records (\n\tid TEXT PRIMARY KEY,\n\tcreated_at DATETIME NOT NULL")
	for _, c := range cols {
		fmt.Fprintf(&b, ",\n\t%s TEXT NOT NULL DEFAULT ''", c)
	}
	b.WriteString("\n);\nCREATE INDEX IF NOT EXISTS movie_records_query ON movie_records (query);\n")
	return b.String()
}

func (b *sqliteBackend) Save(ctx context.Context, record *storage.MovieRecord) error {
	placeholders := strings.Repeat(", ?", len(b.columns))
	query := fmt.Sprintf(`INSERT INTO movie_records (id, created_at, %s) VALUES (?, ?%s)`,
		strings.Join(b.columns, ", "), placeholders)

	args := []any{uuid.New().String(), time.Now().UTC()}
	for _, v := range record.Values() {
		args = append(args, v)
	}

	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.MovieRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM movie_records WHERE 1=1`, strings.Join(b.columns, ", "))
	args := []any{}

	if filter.Query != "" {
		query += ` AND query = ?`
		args = append(args, filter.Query)
	}
	if filter.Title != "" {
		query += ` AND title = ?`
		args = append(args, filter.Title)
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	names := storage.Columns()
	var results []*storage.MovieRecord
	for rows.Next() {
		vals := make([]string, len(names))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		r, err := storage.MovieRecordFromValues(names, vals)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
