package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"testgen/internal/logging"
	"testgen/internal/types"

	_ "modernc.org/sqlite"
)

// RunStatus is the terminal state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	SourceRoot string
	TestRoot   string
	Engine     string
	Generated  int
	Skipped    int
	Failed     int
	Status     RunStatus
}

// ArtifactRecord is one written artifact.
type ArtifactRecord struct {
	RunID       string
	Source      string
	Destination string
	Template    string
	SHA256      string
	Collisions  []string
	CreatedAt   time.Time
}

// RunTotals are the counters recorded when a run finishes.
type RunTotals struct {
	Generated int
	Skipped   int
	Failed    int
}

// Ledger records generation runs in a SQLite database.
type Ledger struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// OpenLedger creates or opens the ledger database at dbPath.
func OpenLedger(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, dbPath: dbPath}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("ledger opened: %s", dbPath)
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		source_root TEXT NOT NULL,
		test_root TEXT NOT NULL,
		engine TEXT NOT NULL,
		generated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		destination TEXT NOT NULL,
		template TEXT NOT NULL,
		sha256 TEXT NOT NULL,
		collisions TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
	`
	_, err := l.db.Exec(schema)
	return err
}

// BeginRun inserts a running run row.
func (l *Ledger) BeginRun(ctx context.Context, run RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, source_root, test_root, engine, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UnixMilli(), run.SourceRoot, run.TestRoot, run.Engine, string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to begin run %s: %w", run.ID, err)
	}
	return nil
}

// RecordArtifact stores a written artifact with the digest of its content.
func (l *Ledger) RecordArtifact(ctx context.Context, runID string, a *types.GeneratedArtifact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sum := sha256.Sum256([]byte(a.Content))
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, source, destination, template, sha256, collisions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, a.Source, a.Destination, a.Template.String(), hex.EncodeToString(sum[:]),
		strings.Join(a.Collisions, ","), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", a.Destination, err)
	}
	return nil
}

// FinishRun stores the totals and terminal status of a run.
func (l *Ledger) FinishRun(ctx context.Context, runID string, totals RunTotals, status RunStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, generated = ?, skipped = ?, failed = ?, status = ?
		WHERE id = ?
	`, time.Now().UnixMilli(), totals.Generated, totals.Skipped, totals.Failed, string(status), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish run %s: no such run", runID)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, source_root, test_root, engine, generated, skipped, failed, status
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started int64
		var finished sql.NullInt64
		var status string
		if err := rows.Scan(&r.ID, &started, &finished, &r.SourceRoot, &r.TestRoot, &r.Engine,
			&r.Generated, &r.Skipped, &r.Failed, &status); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		r.Status = RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Artifacts returns the artifacts written by a run, in write order.
func (l *Ledger) Artifacts(ctx context.Context, runID string) ([]ArtifactRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, source, destination, template, sha256, collisions, created_at
		FROM artifacts WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var a ArtifactRecord
		var collisions sql.NullString
		var created int64
		if err := rows.Scan(&a.RunID, &a.Source, &a.Destination, &a.Template, &a.SHA256, &collisions, &created); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		if collisions.Valid && collisions.String != "" {
			a.Collisions = strings.Split(collisions.String, ",")
		}
		a.CreatedAt = time.UnixMilli(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
