package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/reel/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool    *pgxpool.Pool
	columns []string
}

// New creates a new Postgres-backed storage.Backend.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	cols := storage.Columns()
	for i, c := range cols {
		cols[i] = strings.ToLower(c)
	}

	if _, err := pool.Exec(ctx, schema(cols)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &postgresBackend{pool: pool, columns: cols}, nil
}

func schema(cols []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS movie_records (\n\tid UUID PRIMARY KEY,\n\tseq BIGSERIAL,\n\tcreated_at TIMESTAMPTZ NOT NULL")
	for _, c := range cols {
		fmt.Fprintf(&b, ",\n\t%s TEXT NOT NULL DEFAULT ''", c)
	}
	b.WriteString("\n);\nCREATE INDEX IF NOT EXISTS movie_records_query ON movie_records (query);\n")
	return b.String()
}

func (b *postgresBackend) Save(ctx context.Context, record *storage.MovieRecord) error {
	placeholders := make([]string, len(b.columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
	}

	query := fmt.Sprintf(`INSERT INTO movie_records (id, created_at, %s) VALUES ($1, $2, %s)`,
		strings.Join(b.columns, ", "), strings.Join(placeholders, ", "))

	args := []any{uuid.New(), time.Now().UTC()}
	for _, v := range record.Values() {
		args = append(args, v)
	}

	if _, err := b.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.MovieRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM movie_records WHERE 1=1`, strings.Join(b.columns, ", "))
	args := []any{}
	paramCount := 1

	if filter.Query != "" {
		query += fmt.Sprintf(` AND query = $%d`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.Title != "" {
		query += fmt.Sprintf(` AND title = $%d`, paramCount)
		args = append(args, filter.Title)
		paramCount++
	}

	query += ` ORDER BY created_at DESC, seq DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
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

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
