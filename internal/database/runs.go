package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/import-service/internal/runs"
	"github.com/clinica/import-service/internal/types"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS import_runs (
		id            TEXT PRIMARY KEY,
		entity        TEXT NOT NULL,
		filename      TEXT NOT NULL,
		status        TEXT NOT NULL,
		progress      INTEGER NOT NULL DEFAULT 0,
		total_rows    INTEGER NOT NULL DEFAULT 0,
		result        JSONB,
		error         TEXT,
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS import_runs_entity_created_idx ON import_runs (entity, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS import_runs_status_idx ON import_runs (status)`,
}

const runColumns = `id, entity, filename, status, progress, total_rows, result, error, started_at, completed_at, created_at`

// RunStore persists import runs in PostgreSQL
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a store on the given pool
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Migrate creates the import_runs table if needed
func (s *RunStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate import_runs: %w", err)
		}
	}
	return nil
}

// Create inserts a new run
func (s *RunStore) Create(ctx context.Context, run *types.ImportRun) error {
	result, err := encodeResult(run.Result)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_runs (
			id, entity, filename, status, progress, total_rows,
			result, error, started_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		run.ID, run.Entity, run.Filename, string(run.Status), run.Progress, run.TotalRows,
		result, run.Error, run.StartedAt, run.CompletedAt, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// Start marks a run as running
func (s *RunStore) Start(ctx context.Context, id string, totalRows int) error {
	return s.exec(ctx, id, `
		UPDATE import_runs
		SET status = $2, total_rows = $3, started_at = now()
		WHERE id = $1
	`, id, string(types.RunStatusRunning), totalRows)
}

// UpdateProgress raises the progress of a run; lower values are ignored
func (s *RunStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	return s.exec(ctx, id, `
		UPDATE import_runs
		SET progress = GREATEST(progress, $2)
		WHERE id = $1
	`, id, progress)
}

// Complete stores the final tally
func (s *RunStore) Complete(ctx context.Context, id string, result *types.BatchResult) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}
	return s.exec(ctx, id, `
		UPDATE import_runs
		SET status = $2, progress = 100, result = $3, completed_at = now()
		WHERE id = $1
	`, id, string(types.RunStatusCompleted), data)
}

// Fail records an aborted run with its partial tally, if any
func (s *RunStore) Fail(ctx context.Context, id string, message string, result *types.BatchResult) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}
	return s.exec(ctx, id, `
		UPDATE import_runs
		SET status = $2, error = $3, result = $4, completed_at = now()
		WHERE id = $1
	`, id, string(types.RunStatusFailed), message, data)
}

// Get fetches a run by ID
func (s *RunStore) Get(ctx context.Context, id string) (*types.ImportRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM import_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, runs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first
func (s *RunStore) List(ctx context.Context, opts runs.ListOptions) ([]types.ImportRun, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = runs.DefaultListLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM import_runs
		WHERE ($1::text = '' OR entity = $1)
		  AND ($2::text = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, opts.Entity, string(opts.Status), limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	out := []types.ImportRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// MarkInterrupted flags pending or running runs created before cutoff
func (s *RunStore) MarkInterrupted(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE import_runs
		SET status = $1, completed_at = now()
		WHERE status IN ($2, $3) AND created_at < $4
	`, string(types.RunStatusInterrupted), string(types.RunStatusPending), string(types.RunStatusRunning), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteFinishedBefore removes finished runs created before cutoff
func (s *RunStore) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM import_runs
		WHERE status IN ($1, $2, $3) AND created_at < $4
		RETURNING id
	`, string(types.RunStatusCompleted), string(types.RunStatusFailed), string(types.RunStatusInterrupted), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to delete old runs: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect deleted run ids: %w", err)
	}
	return ids, nil
}

func (s *RunStore) exec(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return runs.ErrNotFound
	}
	return nil
}

func scanRun(row pgx.Row) (*types.ImportRun, error) {
	var run types.ImportRun
	var status string
	var result []byte

	err := row.Scan(
		&run.ID, &run.Entity, &run.Filename, &status, &run.Progress, &run.TotalRows,
		&result, &run.Error, &run.StartedAt, &run.CompletedAt, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = types.RunStatus(status)

	if len(result) > 0 {
		var br types.BatchResult
		if err := json.Unmarshal(result, &br); err != nil {
			return nil, fmt.Errorf("failed to decode result of run %s: %w", run.ID, err)
		}
		run.Result = &br
	}
	return &run, nil
}

func encodeResult(result *types.BatchResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return data, nil
}

var _ runs.Store = (*RunStore)(nil)
