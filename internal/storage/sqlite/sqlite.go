// Package sqlite keeps checkpoints and generated records in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"sftgen/internal/models"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path with WAL mode enabled and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=FULL"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS checkpoints (
	stage TEXT NOT NULL,
	file TEXT NOT NULL,
	unit INTEGER NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY(stage, file, unit)
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file TEXT NOT NULL,
	batch_number INTEGER NOT NULL,
	question TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file TEXT NOT NULL,
	batch_number TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_file ON questions(file, batch_number);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Checkpoint is the checkpoint log of one stage. The stored entries are loaded when it is opened.
type Checkpoint struct {
	db    *sql.DB
	stage models.Stage
	done  map[string]map[int]struct{}
}

func (s *Store) Checkpoint(ctx context.Context, stage models.Stage) (*Checkpoint, error) {
	c := &Checkpoint{db: s.db, stage: stage, done: map[string]map[int]struct{}{}}
	rows, err := s.db.QueryContext(ctx, `SELECT file, unit FROM checkpoints WHERE stage = ?`, string(stage))
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var file string
		var unit int
		if err := rows.Scan(&file, &unit); err != nil {
			return nil, err
		}
		c.add(file, unit)
	}
	return c, rows.Err()
}

func (c *Checkpoint) add(file string, unit int) {
	m, ok := c.done[file]
	if !ok {
		m = map[int]struct{}{}
		c.done[file] = m
	}
	m[unit] = struct{}{}
}

func (c *Checkpoint) IsDone(file string, unit int) bool {
	_, ok := c.done[file][unit]
	return ok
}

func (c *Checkpoint) MarkDone(ctx context.Context, file string, unit int) error {
	if c.IsDone(file, unit) {
		return nil
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO checkpoints(stage, file, unit) VALUES (?, ?, ?)`,
		string(c.stage), file, unit)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	c.add(file, unit)
	return nil
}

// AppendQuestions inserts all questions of a batch in one transaction.
func (s *Store) AppendQuestions(ctx context.Context, file string, batch int, questions []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO questions(file, batch_number, question) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range questions {
		if _, err := stmt.ExecContext(ctx, file, batch, q); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) AppendAnswer(ctx context.Context, rec models.AnswerRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answers(file, batch_number, question, answer) VALUES (?, ?, ?, ?)`,
		rec.File, rec.BatchNumber, rec.Question, rec.Answer)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}

// ForEachQuestion visits questions in insertion order. The questions are read into memory first
// so fn may write to the store while iterating.
func (s *Store) ForEachQuestion(ctx context.Context, fn func(models.QuestionRow) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT file, batch_number, question FROM questions ORDER BY id`)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	var all []models.QuestionRow
	for rows.Next() {
		var r models.QuestionRow
		var batch int
		if err := rows.Scan(&r.File, &batch, &r.Question); err != nil {
			rows.Close()
			return err
		}
		r.BatchNumber = strconv.Itoa(batch)
		r.Row = len(all) + 1
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	for _, r := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// QuestionPage returns up to limit questions after the first offset rows, numbered like
// ForEachQuestion numbers them.
func (s *Store) QuestionPage(ctx context.Context, offset, limit int) ([]models.QuestionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file, batch_number, question FROM questions ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("page questions: %w", err)
	}
	defer rows.Close()
	var out []models.QuestionRow
	for rows.Next() {
		var r models.QuestionRow
		var batch int
		if err := rows.Scan(&r.File, &batch, &r.Question); err != nil {
			return nil, err
		}
		r.BatchNumber = strconv.Itoa(batch)
		r.Row = offset + len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// Answers returns every stored answer in insertion order.
func (s *Store) Answers(ctx context.Context) ([]models.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file, batch_number, question, answer FROM answers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AnswerRecord
	for rows.Next() {
		var a models.AnswerRecord
		if err := rows.Scan(&a.File, &a.BatchNumber, &a.Question, &a.Answer); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
