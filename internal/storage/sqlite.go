package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ruiji/internal/models"
)

// SQLiteStorage implements RunStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		extensions TEXT,
		total INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_job_runs_started_at ON job_runs(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateRun inserts a run.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.JobRun) error {
	extJSON, err := json.Marshal(run.Extensions)
	if err != nil {
		return fmt.Errorf("failed to marshal extensions: %w", err)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_runs (id, root, extensions, total, processed, failed, status, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, string(extJSON), run.Total, run.Processed, run.Failed,
		string(run.Status), run.StartedAt, nullTime(run.FinishedAt),
	)
	return err
}

// UpdateRun updates counters, status and finish time.
func (s *SQLiteStorage) UpdateRun(ctx context.Context, run *models.JobRun) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET total = ?, processed = ?, failed = ?, status = ?, finished_at = ?
		 WHERE id = ?`,
		run.Total, run.Processed, run.Failed, string(run.Status), nullTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.JobRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, root, extensions, total, processed, failed, status, started_at, finished_at
		 FROM job_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs. A non-positive limit returns 20.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*models.JobRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, root, extensions, total, processed, failed, status, started_at, finished_at
		 FROM job_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.JobRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of recorded runs.
func (s *SQLiteStorage) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_runs").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.JobRun, error) {
	var run models.JobRun
	var extJSON sql.NullString
	var status string
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &run.Root, &extJSON, &run.Total, &run.Processed, &run.Failed,
		&status, &run.StartedAt, &finished); err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	if extJSON.Valid && extJSON.String != "" {
		if err := json.Unmarshal([]byte(extJSON.String), &run.Extensions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extensions: %w", err)
		}
	}
	return &run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
