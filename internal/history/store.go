// # internal/history/store.go
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Store persists bundling runs to a local SQLite file so watch mode
// can show how a project's bundle evolves over time.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun persists one run and returns its assigned id.
func (s *Store) RecordRun(run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	_, err := s.db.Exec(`
INSERT INTO runs (
  id, schema_version, ts_utc, entry, succeeded,
  module_count, item_count, included_item_count, rename_count,
  cycle_group_count, elided_import_count, output_bytes,
  warning_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, SchemaVersion, run.Timestamp.UTC().Format(time.RFC3339Nano),
		run.Entry, boolToInt(run.Succeeded),
		run.Modules, run.Items, run.IncludedItems, run.Renames,
		run.CycleGroups, run.ElidedImports, run.OutputBytes,
		run.Warnings, run.DurationMS)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// RecentRuns returns the newest runs for an entry, newest first. An
// empty entry matches every run.
func (s *Store) RecentRuns(entry string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}

	query := `
SELECT id, ts_utc, entry, succeeded,
  module_count, item_count, included_item_count, rename_count,
  cycle_group_count, elided_import_count, output_bytes,
  warning_count, duration_ms
FROM runs`
	args := []any{}
	if entry != "" {
		query += ` WHERE entry = ?`
		args = append(args, entry)
	}
	query += ` ORDER BY ts_utc DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var ts string
		var succeeded int
		if err := rows.Scan(&run.ID, &ts, &run.Entry, &succeeded,
			&run.Modules, &run.Items, &run.IncludedItems, &run.Renames,
			&run.CycleGroups, &run.ElidedImports, &run.OutputBytes,
			&run.Warnings, &run.DurationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		run.Succeeded = succeeded != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
