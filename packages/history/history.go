// Package history stores run outcomes in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apicheck/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrNoRuns is returned by Last when nothing has been recorded.
var ErrNoRuns = errors.New("no runs recorded")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	suite       TEXT NOT NULL,
	base_url    TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	p95_ms      REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS case_results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Case statuses.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is one recorded suite run.
type Run struct {
	ID       string
	Suite    string
	BaseURL  string
	Started  time.Time
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	P95      time.Duration
	Cases    []Case
}

// Success reports whether no case failed.
func (r *Run) Success() bool {
	return r.Failed == 0
}

// Case is the recorded outcome of a single case.
type Case struct {
	Name     string
	Status   string
	Duration time.Duration
	Message  string
}

// Store is a history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. A "sqlite:" or "sqlite://"
// prefix is accepted.
func Open(path string) (*Store, error) {
	path = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(path), "sqlite://"), "sqlite:")
	if path == "" {
		return nil, errors.New("history path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save records a run and its case results in one transaction.
func (s *Store) Save(ctx context.Context, result *runner.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, suite, base_url, started_at, duration_ms, passed, failed, skipped, p95_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.Suite, result.BaseURL, result.Started.UnixNano(),
		result.Duration.Milliseconds(), result.Passed, result.Failed, result.Skipped,
		float64(result.Latency.P95.Microseconds())/1000,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, r := range result.Results {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO case_results (run_id, position, name, status, duration_ms, message)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			result.ID, i, r.Name, status(r), r.Duration.Milliseconds(), message(r),
		)
		if err != nil {
			return fmt.Errorf("insert case %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func status(r *runner.CaseResult) string {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Passed:
		return StatusPassed
	default:
		return StatusFailed
	}
}

func message(r *runner.CaseResult) string {
	if r.Skipped {
		return r.SkipReason
	}
	if r.Error != nil {
		return r.Error.Error()
	}
	var parts []string
	for _, a := range r.FailedAssertions() {
		parts = append(parts, fmt.Sprintf("%s %s: %s", a.Subject, a.Operator, a.Message))
	}
	return strings.Join(parts, "\n")
}

// Last returns the most recent run with its cases.
func (s *Store) Last(ctx context.Context) (*Run, error) {
	runs, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	run := runs[0]
	run.Cases, err = s.Cases(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit of zero or less means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, suite, base_url, started_at, duration_ms, passed, failed, skipped, p95_ms
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var (
			run        Run
			startedNs  int64
			durationMs int64
			p95Ms      float64
		)
		if err := rows.Scan(&run.ID, &run.Suite, &run.BaseURL, &startedNs, &durationMs,
			&run.Passed, &run.Failed, &run.Skipped, &p95Ms); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.Started = time.Unix(0, startedNs)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.P95 = time.Duration(p95Ms * float64(time.Millisecond))
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Cases returns the case results of a run in suite order.
func (s *Store) Cases(ctx context.Context, runID string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, status, duration_ms, message FROM case_results
		 WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var (
			c          Case
			durationMs int64
		)
		if err := rows.Scan(&c.Name, &c.Status, &durationMs, &c.Message); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		cases = append(cases, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cases, nil
}
