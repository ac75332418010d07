// Package store persists run history in SQLite so regressions can be traced
// across runs. Recording is best-effort: a store problem never fails a run.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"attest/internal/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	mode        TEXT NOT NULL,
	total       INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id  TEXT NOT NULL REFERENCES runs(id),
	test    TEXT NOT NULL,
	script  TEXT NOT NULL,
	passed  INTEGER NOT NULL,
	message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_test ON results(test);
`

// ResultStore records run outcomes.
type ResultStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open initializes the store at path, creating the schema when missing.
func Open(path string) (*ResultStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate result store: %w", err)
	}
	return &ResultStore{db: db}, nil
}

// RecordRun stores one run and its per-test results in a transaction.
func (s *ResultStore) RecordRun(result *runner.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, started_at, mode, total, failed, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		result.RunID, result.StartedAt.UnixMilli(), string(result.Mode),
		len(result.Tests), result.Failed, result.Duration.Milliseconds(),
	)
	if err != nil {
		return err
	}

	for _, test := range result.Tests {
		_, err = tx.Exec(
			`INSERT INTO results (run_id, test, script, passed, message) VALUES (?, ?, ?, ?, ?)`,
			result.RunID, test.Name, test.Script, boolToInt(test.Passed), test.Message,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string
	StartedAt  int64
	Mode       string
	Total      int
	Failed     int
	DurationMs int64
}

// RecentRuns returns the latest runs, newest first.
func (s *ResultStore) RecentRuns(limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, started_at, mode, total, failed, duration_ms FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Mode, &r.Total, &r.Failed, &r.DurationMs); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FailureHistory returns the stored messages of past failures of one test,
// newest first.
func (s *ResultStore) FailureHistory(test string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT r.message FROM results r JOIN runs ON runs.id = r.run_id
		 WHERE r.test = ? AND r.passed = 0 ORDER BY runs.started_at DESC LIMIT ?`,
		test, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
