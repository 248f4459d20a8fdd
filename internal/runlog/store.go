// Package runlog persists the per-run audit trail in a local SQLite
// database: one row per pipeline run with its query parameters, counts,
// and outcome. The history backs the `litsync history` command and the
// drop/jump validation baseline.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run history database at the given
// path, creating parent directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create runlog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    tier TEXT NOT NULL,
    query TEXT NOT NULL,
    dry_run INTEGER NOT NULL DEFAULT 0,
    fetched INTEGER NOT NULL DEFAULT 0,
    created INTEGER NOT NULL DEFAULT 0,
    updated INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    enriched INTEGER NOT NULL DEFAULT 0,
    escalated INTEGER NOT NULL DEFAULT 0,
    outcome TEXT NOT NULL DEFAULT 'running',
    note TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// applySchema creates the runs table when absent.
func (s *Store) applySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply runlog schema: %w", err)
	}
	return nil
}

// Entry is one recorded pipeline run.
type Entry struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Tier       string
	Query      string
	DryRun     bool
	Fetched    int
	Created    int
	Updated    int
	Skipped    int
	Failed     int
	Enriched   int
	Escalated  int
	Outcome    string
	Note       string
}

// Begin records the start of a run.
func (s *Store) Begin(ctx context.Context, runID, tier, query string, dryRun bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, tier, query, dry_run)
         VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano), tier, query, boolToInt(dryRun))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records the outcome and counts of a run.
func (s *Store) Finish(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            finished_at = ?, fetched = ?, created = ?, updated = ?,
            skipped = ?, failed = ?, enriched = ?, escalated = ?,
            outcome = ?, note = ?
         WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		e.Fetched, e.Created, e.Updated, e.Skipped, e.Failed,
		e.Enriched, e.Escalated, e.Outcome, e.Note, e.RunID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, tier, query, dry_run,
                fetched, created, updated, skipped, failed, enriched,
                escalated, outcome, COALESCE(note, '')
         FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt string
		var finishedAt sql.NullString
		var dryRun int

		if err := rows.Scan(&e.RunID, &startedAt, &finishedAt, &e.Tier, &e.Query,
			&dryRun, &e.Fetched, &e.Created, &e.Updated, &e.Skipped, &e.Failed,
			&e.Enriched, &e.Escalated, &e.Outcome, &e.Note); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			e.StartedAt = t
		}
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
				e.FinishedAt = &t
			}
		}
		e.DryRun = dryRun != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MedianFetched returns the median of the fetched count over the most
// recent successful non-dry runs of the given tier. ok is false when no
// history exists yet.
func (s *Store) MedianFetched(ctx context.Context, tier string, window int) (float64, bool, error) {
	if window <= 0 {
		window = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fetched FROM runs
         WHERE tier = ? AND dry_run = 0 AND outcome = 'succeeded'
         ORDER BY started_at DESC, id DESC LIMIT ?`, tier, window)
	if err != nil {
		return 0, false, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var counts []int
	for rows.Next() {
		var c int
		if err := rows.Scan(&c); err != nil {
			return 0, false, fmt.Errorf("scan fetched count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	if len(counts) == 0 {
		return 0, false, nil
	}
	return median(counts), true, nil
}

func median(values []int) float64 {
	sorted := make([]int, len(values))
	copy(sorted, values)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
