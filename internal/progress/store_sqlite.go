package progress

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps progress rows in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the progress database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("progress: sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("progress: create sqlite dir: %w", err)
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
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create progress schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, jobID string) (State, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, progress, timestamp, status, started_at, finished_at FROM render_progress WHERE job_id = ?`, jobID)
	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrNotFound
	}
	return state, err
}

func (s *SQLiteStore) Save(ctx context.Context, state State) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO render_progress (job_id, progress, timestamp, status, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    progress = excluded.progress,
    timestamp = excluded.timestamp,
    status = excluded.status,
    started_at = excluded.started_at,
    finished_at = excluded.finished_at`,
		state.JobID, state.Progress, state.Timestamp, string(state.Status), state.StartedAt, state.FinishedAt)
	if err != nil {
		return fmt.Errorf("progress: save state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM render_progress WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("progress: delete state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, progress, timestamp, status, started_at, finished_at FROM render_progress ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("progress: list states: %w", err)
	}
	defer rows.Close()
	var states []State
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (State, error) {
	var (
		state  State
		status string
	)
	if err := row.Scan(&state.JobID, &state.Progress, &state.Timestamp, &status, &state.StartedAt, &state.FinishedAt); err != nil {
		return State{}, err
	}
	state.Status = Status(status)
	return state, nil
}
