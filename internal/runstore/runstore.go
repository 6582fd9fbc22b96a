// Package runstore persists smoke run history in a SQLite database.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

const dbFile = "runs.db"

// Store keeps one row per run; check results are stored as JSON.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Summary is a run row without its results.
type Summary struct {
	ID         string    `json:"id"`
	BaseURL    string    `json:"base_url"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
}

// Open opens or creates the run database in dbDir.
func Open(dbDir string) (*Store, error) {
	if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("runstore: create directory: %w", err)
	}
	dbPath := filepath.Join(dbDir, dbFile)

	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("runstore: open: %w", err)
	}
	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dbPath: dbPath}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: enable WAL: %w", err)
	}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: create tables: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		results_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Save inserts or replaces a run.
func (s *Store) Save(ctx context.Context, run *smoke.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("runstore: run id is required")
	}
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("runstore: marshal results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO runs (id, base_url, started_at, ended_at, duration_ms, passed, failed, results_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		base_url = excluded.base_url,
		started_at = excluded.started_at,
		ended_at = excluded.ended_at,
		duration_ms = excluded.duration_ms,
		passed = excluded.passed,
		failed = excluded.failed,
		results_json = excluded.results_json
	`,
		run.ID, run.BaseURL, formatTime(run.StartedAt), formatTime(run.EndedAt),
		run.DurationMS, run.Passed, run.Failed, string(results),
	)
	if err != nil {
		return fmt.Errorf("runstore: save %s: %w", run.ID, err)
	}
	return nil
}

// Get loads a run with its results.
func (s *Store) Get(ctx context.Context, id string) (*smoke.Run, error) {
	var (
		run            smoke.Run
		started, ended string
		resultsJSON    string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT id, base_url, started_at, ended_at, duration_ms, passed, failed, results_json
	FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.BaseURL, &started, &ended, &run.DurationMS, &run.Passed, &run.Failed, &resultsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("runstore: get %s: %w", id, err)
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if run.EndedAt, err = parseTime(ended); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return nil, fmt.Errorf("runstore: unmarshal results of %s: %w", id, err)
	}
	return &run, nil
}

// List returns up to limit runs, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, base_url, started_at, duration_ms, passed, failed
	FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		var started string
		if err := rows.Scan(&sum.ID, &sum.BaseURL, &started, &sum.DurationMS, &sum.Passed, &sum.Failed); err != nil {
			return nil, fmt.Errorf("runstore: scan: %w", err)
		}
		if sum.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many it removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
	DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, fmt.Errorf("runstore: prune: %w", err)
	}
	return res.RowsAffected()
}

// Times are stored as fixed-width UTC text so ORDER BY sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("runstore: parse time %q: %w", s, err)
	}
	return t, nil
}
