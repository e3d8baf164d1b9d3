package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Store persists pipeline runs and their finished scripts.
type Store struct {
	DB *sql.DB
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run records one pipeline execution.
type Run struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
	VideoPath  *string    `json:"video_path,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// CreateRun inserts a new running pipeline run and returns its id.
func (s *Store) CreateRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, created_at) VALUES ($1, $2, $3, now())`,
		id, source, RunStatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// FinishRun records the terminal status of a run. errMsg and videoPath may
// be nil.
func (s *Store) FinishRun(ctx context.Context, id, status string, errMsg, videoPath *string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status = $2, error = $3, video_path = $4, finished_at = now() WHERE id = $1`,
		id, status, errMsg, videoPath,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun loads a single run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, source, status, error, video_path, created_at, finished_at FROM runs WHERE id = $1`, id)
	var r Run
	if err := row.Scan(&r.ID, &r.Source, &r.Status, &r.Error, &r.VideoPath, &r.CreatedAt, &r.FinishedAt); err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, source, status, error, video_path, created_at, finished_at FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.Error, &r.VideoPath, &r.CreatedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRunTime returns the creation time of the newest run for a source,
// or nil when the source has never run.
func (s *Store) LatestRunTime(ctx context.Context, source string) (*time.Time, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT created_at FROM runs WHERE source = $1 ORDER BY created_at DESC LIMIT 1`, source)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// SaveScript archives a finished script document under its run.
func (s *Store) SaveScript(ctx context.Context, runID, title string, document any) error {
	payload, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal script: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO scripts (id, run_id, title, document, created_at) VALUES ($1, $2, $3, $4, now())`,
		uuid.NewString(), runID, title, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save script: %w", err)
	}
	return nil
}

// GetScript loads the archived script document for a run.
func (s *Store) GetScript(ctx context.Context, runID string) (string, json.RawMessage, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT title, document FROM scripts WHERE run_id = $1 ORDER BY created_at DESC LIMIT 1`, runID)
	var title string
	var doc json.RawMessage
	if err := row.Scan(&title, &doc); err != nil {
		return "", nil, fmt.Errorf("failed to load script for run %s: %w", runID, err)
	}
	return title, doc, nil
}
