// Package jobstore persists a ledger of pipeline runs in SQLite so past runs
// and their per-stage outcomes can be inspected after the fact. The ledger is
// advisory; losing it never blocks a run.
package jobstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes. A mismatched database must
// be deleted; the ledger carries no state a run depends on.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrRunNotFound indicates an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID        string
	InputFile string
	Status    string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StageRecord is one stage's outcome within a run.
type StageRecord struct {
	RunID      string
	Stage      string
	Status     string
	Detail     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	dbPath := filepath.Join(dir, "dubber.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
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

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// StartRun records a new running pipeline invocation.
func (s *Store) StartRun(ctx context.Context, id, inputFile string) (*Run, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_file, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, inputFile, StatusRunning, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// FinishRun marks a run completed.
func (s *Store) FinishRun(ctx context.Context, id string) error {
	return s.setRunStatus(ctx, id, StatusCompleted, "")
}

// FailRun marks a run failed with the given reason.
func (s *Store) FailRun(ctx context.Context, id, reason string) error {
	return s.setRunStatus(ctx, id, StatusFailed, reason)
}

func (s *Store) setRunStatus(ctx context.Context, id, status, reason string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, nullableString(reason), timestamp, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// StartStage records a stage beginning within a run. Restarting a stage
// replaces its earlier record.
func (s *Store) StartStage(ctx context.Context, runID, stage string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (run_id, stage, status, started_at) VALUES (?, ?, ?, ?)
         ON CONFLICT (run_id, stage) DO UPDATE SET
             status = excluded.status,
             detail = NULL,
             error = NULL,
             started_at = excluded.started_at,
             finished_at = NULL`,
		runID, stage, StatusRunning, timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

// FinishStage marks a stage completed with an optional human-readable detail
// such as the artifact path.
func (s *Store) FinishStage(ctx context.Context, runID, stage, detail string) error {
	return s.setStageStatus(ctx, runID, stage, StatusCompleted, detail, "")
}

// FailStage marks a stage failed with the given reason.
func (s *Store) FailStage(ctx context.Context, runID, stage, reason string) error {
	return s.setStageStatus(ctx, runID, stage, StatusFailed, "", reason)
}

func (s *Store) setStageStatus(ctx context.Context, runID, stage, status, detail, reason string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_stages SET status = ?, detail = ?, error = ?, finished_at = ? WHERE run_id = ? AND stage = ?`,
		status, nullableString(detail), nullableString(reason), timestamp, runID, stage,
	)
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRunNotFound, runID, stage)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_file, status, error, created_at, updated_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_file, status, error, created_at, updated_at
         FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListStages returns a run's stage records in start order.
func (s *Store) ListStages(ctx context.Context, runID string) ([]*StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, stage, status, detail, error, started_at, finished_at
         FROM run_stages WHERE run_id = ? ORDER BY started_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var records []*StageRecord
	for rows.Next() {
		var record StageRecord
		var detail, reason, finished sql.NullString
		var started string
		if err := rows.Scan(&record.RunID, &record.Stage, &record.Status, &detail, &reason, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		record.Detail = detail.String
		record.Error = reason.String
		record.StartedAt = parseTimestamp(started)
		if finished.Valid {
			record.FinishedAt = parseTimestamp(finished.String)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var reason sql.NullString
	var created, updated string
	if err := row.Scan(&run.ID, &run.InputFile, &run.Status, &reason, &created, &updated); err != nil {
		return nil, err
	}
	run.Error = reason.String
	run.CreatedAt = parseTimestamp(created)
	run.UpdatedAt = parseTimestamp(updated)
	return &run, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
