package storage

import (
	"context"
	"fmt"
	"strconv"

	"sftgen/internal/models"
)

type RecordRepo struct {
	db *DB
}

func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func (r *RecordRepo) AppendQuestions(ctx context.Context, file string, batch int, questions []string) error {
	if len(questions) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx append questions: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, q := range questions {
		if _, err := tx.Exec(ctx, `INSERT INTO questions (file, batch_number, question) VALUES ($1, $2, $3)`, file, batch, q); err != nil {
			return fmt.Errorf("insert question %s/%d: %w", file, batch, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit questions tx: %w", err)
	}
	return nil
}

func (r *RecordRepo) AppendAnswer(ctx context.Context, rec models.AnswerRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO answers (file, batch_number, question, answer)
VALUES ($1, $2, $3, $4)`, rec.File, rec.BatchNumber, rec.Question, rec.Answer)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (r *RecordRepo) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// ForEachQuestion loads all questions in insertion order, then calls fn for each. Loading first
// keeps the pool connection free for the writes fn performs.
func (r *RecordRepo) ForEachQuestion(ctx context.Context, fn func(models.QuestionRow) error) error {
	rows, err := r.db.Pool.Query(ctx, `SELECT file, batch_number, question FROM questions ORDER BY id`)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	out := make([]models.QuestionRow, 0)
	for rows.Next() {
		var q models.QuestionRow
		var batch int
		if err := rows.Scan(&q.File, &batch, &q.Question); err != nil {
			rows.Close()
			return fmt.Errorf("scan question: %w", err)
		}
		q.BatchNumber = strconv.Itoa(batch)
		q.Row = len(out) + 1
		out = append(out, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate questions: %w", err)
	}
	for _, q := range out {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(q); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecordRepo) QuestionPage(ctx context.Context, offset, limit int) ([]models.QuestionRow, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT file, batch_number, question FROM questions ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page questions: %w", err)
	}
	defer rows.Close()
	out := make([]models.QuestionRow, 0, limit)
	for rows.Next() {
		var q models.QuestionRow
		var batch int
		if err := rows.Scan(&q.File, &batch, &q.Question); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.BatchNumber = strconv.Itoa(batch)
		q.Row = offset + len(out) + 1
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}
