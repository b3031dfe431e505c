// Package history records scenario runs in a SQLite database so past
// verdicts and failures can be listed later.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"scenctl/internal/summary"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	environment TEXT    NOT NULL DEFAULT '',
	tags        TEXT    NOT NULL DEFAULT '',
	parallelism INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	errored     INTEGER NOT NULL,
	verdict     TEXT    NOT NULL
);
CREATE TABLE IF NOT EXISTS run_failures (
	run_id   INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	message  TEXT    NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// Run is one recorded scenario run
type Run struct {
	ID          int64         `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Environment string        `json:"environment,omitempty"`
	Tags        string        `json:"tags,omitempty"`
	Parallelism int           `json:"parallelism"`
	Total       int           `json:"total"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Errored     int           `json:"errored"`
	Verdict     string        `json:"verdict"`
	Failures    []string      `json:"failures,omitempty"`
}

// NewRun copies the counts and failure messages of s into a Run
func NewRun(s summary.RunSummary, verdict, environment, tags string, parallelism int) Run {
	return Run{
		StartedAt:   s.StartTime,
		Duration:    s.Duration,
		Environment: environment,
		Tags:        tags,
		Parallelism: parallelism,
		Total:       s.Total,
		Passed:      s.Passed,
		Failed:      s.Failed,
		Errored:     s.Errored,
		Verdict:     verdict,
		Failures:    append([]string(nil), s.FailureMessages...),
	}
}

// Store is a SQLite-backed run history
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the history database at path and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: empty database path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("history: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts run and its failure messages in one transaction and returns
// the new run id.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, duration_ms, environment, tags, parallelism, total, passed, failed, errored, verdict)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), run.Environment, run.Tags,
		run.Parallelism, run.Total, run.Passed, run.Failed, run.Errored, run.Verdict)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: run id: %w", err)
	}

	for i, msg := range run.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_failures (run_id, position, message) VALUES (?, ?, ?)`,
			id, i, msg); err != nil {
			return 0, fmt.Errorf("history: insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first, with their failure messages.
// A non-positive limit returns every run.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, started_at, duration_ms, environment, tags, parallelism, total, passed, failed, errored, verdict
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			r          Run
			startedMs  int64
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &startedMs, &durationMs, &r.Environment, &r.Tags, &r.Parallelism,
			&r.Total, &r.Passed, &r.Failed, &r.Errored, &r.Verdict); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate runs: %w", err)
	}
	rows.Close()

	for i := range runs {
		failures, err := s.failures(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Failures = failures
	}
	return runs, nil
}

func (s *Store) failures(ctx context.Context, runID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message FROM run_failures WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: query failures: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("history: scan failure: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// FormatRun renders a run as a single line for listings
func FormatRun(r Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s %-4s %d/%d passed", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
		r.Verdict, r.Passed, r.Total)
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", r.Failed)
	}
	if r.Errored > 0 {
		fmt.Fprintf(&b, ", %d errors", r.Errored)
	}
	fmt.Fprintf(&b, " (%v)", r.Duration)
	if r.Environment != "" {
		fmt.Fprintf(&b, " env=%s", r.Environment)
	}
	if r.Tags != "" {
		fmt.Fprintf(&b, " tags=%q", r.Tags)
	}
	return b.String()
}
