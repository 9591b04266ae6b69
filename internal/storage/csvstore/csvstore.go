// Package csvstore keeps checkpoints and generated records in append-only CSV files.
//
// Every append opens the file, writes the header first when the file is missing or empty,
// writes the rows, then flushes and fsyncs before returning.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sftgen/internal/models"
	"sftgen/internal/util"
)

var (
	QuestionsHeader        = []string{"File", "Batch_Number", "Question"}
	AnswersHeader          = []string{"File", "Batch_Number", "Question", "Answer"}
	CheckpointHeader       = []string{"File", "Batch_Number"}
	AnswerCheckpointHeader = []string{"File", "Row"}
)

func appendRows(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := util.EnsureDir(dir); err != nil {
			return err
		}
	}
	empty, err := util.IsEmptyFile(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if empty {
		if err := w.Write(header); err != nil {
			f.Close()
			return fmt.Errorf("write header %s: %w", path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write rows %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

// readRows returns the data rows of a CSV file with a header. A missing file has no rows.
func readRows(path string, fn func(header map[string]int, rec []string) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}
	header := make(map[string]int, len(first))
	for i, h := range first {
		header[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(header, rec); err != nil {
			return err
		}
	}
}

func field(header map[string]int, rec []string, name string) string {
	i, ok := header[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// Checkpoint is a CSV-backed checkpoint log keyed by (File, <unit column>).
type Checkpoint struct {
	path   string
	header []string
	done   map[string]map[int]struct{}
}

// OpenCheckpoint loads every entry of the log at path. Rows whose unit does not parse as an
// integer are logged and ignored.
func OpenCheckpoint(path string, header []string) (*Checkpoint, error) {
	c := &Checkpoint{path: path, header: header, done: map[string]map[int]struct{}{}}
	unitCol := header[1]
	err := readRows(path, func(h map[string]int, rec []string) error {
		file := field(h, rec, header[0])
		n, err := strconv.Atoi(strings.TrimSpace(field(h, rec, unitCol)))
		if file == "" || err != nil {
			log.Printf("checkpoint: ignoring malformed row path=%s row=%v", path, rec)
			return nil
		}
		c.add(file, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
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
	_ = ctx
	if c.IsDone(file, unit) {
		return nil
	}
	if err := appendRows(c.path, c.header, [][]string{{file, strconv.Itoa(unit)}}); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	c.add(file, unit)
	return nil
}

// Len is the number of distinct checkpointed entries.
func (c *Checkpoint) Len() int {
	n := 0
	for _, m := range c.done {
		n += len(m)
	}
	return n
}

type QuestionSink struct {
	path string
}

func NewQuestionSink(path string) *QuestionSink {
	return &QuestionSink{path: path}
}

func (s *QuestionSink) AppendQuestions(ctx context.Context, file string, batch int, questions []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([][]string, 0, len(questions))
	b := strconv.Itoa(batch)
	for _, q := range questions {
		rows = append(rows, []string{file, b, q})
	}
	return appendRows(s.path, QuestionsHeader, rows)
}

// CountQuestions counts data rows of the questions file.
func (s *QuestionSink) CountQuestions(ctx context.Context) (int, error) {
	_ = ctx
	n := 0
	err := readRows(s.path, func(map[string]int, []string) error {
		n++
		return nil
	})
	return n, err
}

// ForEachQuestion streams the questions file row by row. Columns are matched by header name;
// missing columns come back empty so the caller can decide to skip the row.
func (s *QuestionSink) ForEachQuestion(ctx context.Context, fn func(models.QuestionRow) error) error {
	row := 0
	return readRows(s.path, func(h map[string]int, rec []string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		row++
		return fn(models.QuestionRow{
			Row:         row,
			File:        strings.TrimSpace(field(h, rec, "File")),
			BatchNumber: strings.TrimSpace(field(h, rec, "Batch_Number")),
			Question:    field(h, rec, "Question"),
		})
	})
}

type AnswerSink struct {
	path string
}

func NewAnswerSink(path string) *AnswerSink {
	return &AnswerSink{path: path}
}

func (s *AnswerSink) AppendAnswer(ctx context.Context, rec models.AnswerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return appendRows(s.path, AnswersHeader, [][]string{{rec.File, rec.BatchNumber, rec.Question, rec.Answer}})
}
