package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"sftgen/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, runID string, stage models.Stage) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO runs (run_id, stage, status)
VALUES ($1, $2, 'running')
ON CONFLICT (run_id) DO NOTHING`, runID, string(stage))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final summary, creating the row for runs that were never started here.
func (r *RunRepo) FinishRun(ctx context.Context, sum models.RunSummary, status string) error {
	body, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO runs (run_id, stage, status, summary, started_at, finished_at)
VALUES ($1, $2, $3, $4::jsonb, $5, NOW())
ON CONFLICT (run_id)
DO UPDATE SET
  status = EXCLUDED.status,
  summary = EXCLUDED.summary,
  finished_at = NOW()`, sum.RunID, string(sum.Stage), status, string(body), sum.StartedAt)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (models.RunSummary, string, error) {
	var status string
	var body []byte
	if err := r.db.Pool.QueryRow(ctx, `SELECT status, COALESCE(summary, '{}'::jsonb) FROM runs WHERE run_id=$1`, runID).Scan(&status, &body); err != nil {
		return models.RunSummary{}, "", fmt.Errorf("get run: %w", err)
	}
	var sum models.RunSummary
	if err := json.Unmarshal(body, &sum); err != nil {
		return models.RunSummary{}, "", fmt.Errorf("decode run summary: %w", err)
	}
	return sum, status, nil
}
