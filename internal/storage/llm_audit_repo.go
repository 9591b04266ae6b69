package storage

import (
	"context"
	"fmt"

	"sftgen/internal/models"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) RecordCall(ctx context.Context, c models.LLMCall) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, run_id, stage, file, unit, attempt, provider_name, model, status, error_type, latency_ms, prompt_hash)
VALUES ($1, NULLIF($2,''), $3, NULLIF($4,''), $5, $6, $7, $8, $9, NULLIF($10,''), $11, $12)`,
		c.CallID, c.RunID, string(c.Stage), c.File, c.Unit, c.Attempt, c.ProviderName, c.Model, c.Status, c.ErrorType, c.LatencyMS, c.PromptHash)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
