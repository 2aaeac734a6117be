package pipeline

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/FranksOps/reel/internal/title"
)

// LoadQueries turns each raw line of a film list into a search query for
// year. Lines without a recoverable title are logged and skipped. Queries
// are returned in file order and are not deduplicated.
func LoadQueries(path string, year int, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open film list: %w", err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		t, err := title.Normalize(raw)
		if err != nil {
			logger.Warn("skipping film list line", "path", path, "line", line, "err", err)
			continue
		}
		queries = append(queries, title.Query(t, year))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read film list: %w", err)
	}
	return queries, nil
}
