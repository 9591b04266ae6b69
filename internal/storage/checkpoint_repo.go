package storage

import (
	"context"
	"fmt"

	"sftgen/internal/models"
)

// CheckpointRepo is the checkpoint log of one stage, snapshotted into memory at load time.
type CheckpointRepo struct {
	db    *DB
	stage models.Stage
	done  map[string]map[int]struct{}
}

func LoadCheckpointRepo(ctx context.Context, db *DB, stage models.Stage) (*CheckpointRepo, error) {
	r := &CheckpointRepo{db: db, stage: stage, done: map[string]map[int]struct{}{}}
	rows, err := db.Pool.Query(ctx, `SELECT file, unit FROM checkpoints WHERE stage=$1`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var file string
		var unit int
		if err := rows.Scan(&file, &unit); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		r.add(file, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return r, nil
}

func (r *CheckpointRepo) add(file string, unit int) {
	m, ok := r.done[file]
	if !ok {
		m = map[int]struct{}{}
		r.done[file] = m
	}
	m[unit] = struct{}{}
}

func (r *CheckpointRepo) IsDone(file string, unit int) bool {
	_, ok := r.done[file][unit]
	return ok
}

func (r *CheckpointRepo) MarkDone(ctx context.Context, file string, unit int) error {
	if r.IsDone(file, unit) {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO checkpoints (stage, file, unit)
VALUES ($1, $2, $3)
ON CONFLICT (stage, file, unit) DO NOTHING`, string(r.stage), file, unit)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	r.add(file, unit)
	return nil
}
