// Package pipeline drives the two generation stages over their units of work: batches of a
// document for the question stage, rows of the questions table for the answer stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"sftgen/internal/documents"
	"sftgen/internal/invoker"
	"sftgen/internal/models"
	"sftgen/internal/parser"
	"sftgen/internal/prompt"
	"sftgen/internal/util"
)

// Invoker is satisfied by *invoker.Invoker.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, p parser.Parser, unit invoker.Unit) invoker.Result
}

type QuestionConfig struct {
	BatchSize    int
	NumQuestions int
	// Resume skips batches that already have a checkpoint. Checkpoints are written either way.
	Resume bool
}

type QuestionDriver struct {
	cfg        QuestionConfig
	template   *prompt.Template
	invoker    Invoker
	checkpoint CheckpointStore
	sink       QuestionSink
	parser     parser.Parser
	runID      string
}

func NewQuestionDriver(cfg QuestionConfig, template string, inv Invoker, checkpoint CheckpointStore, sink QuestionSink) (*QuestionDriver, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", util.ErrInvalidChunkSize, cfg.BatchSize)
	}
	tpl, err := prompt.Parse(template)
	if err != nil {
		return nil, fmt.Errorf("question prompt: %w", err)
	}
	return &QuestionDriver{
		cfg:        cfg,
		template:   tpl,
		invoker:    inv,
		checkpoint: checkpoint,
		sink:       sink,
		parser:     parser.QuestionParser{},
	}, nil
}

// WithRunID tags audit rows and log lines with the run.
func (d *QuestionDriver) WithRunID(runID string) *QuestionDriver {
	d.runID = runID
	return d
}

// ProcessDirectory runs every document in dir matching pattern, in name order. Failures of a
// single document are recorded in the summary and never stop the run; only discovery errors and
// context cancellation are returned.
func (d *QuestionDriver) ProcessDirectory(ctx context.Context, dir, pattern string) (models.RunSummary, error) {
	sum := models.RunSummary{RunID: d.runID, Stage: models.StageQuestions, StartedAt: time.Now().UTC()}
	paths, err := documents.Discover(dir, pattern)
	if err != nil {
		return sum, err
	}
	log.Printf("question stage start run_id=%s dir=%s pattern=%s documents=%d", d.runID, dir, pattern, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			sum.FinishedAt = time.Now().UTC()
			return sum, err
		}
		sum.Merge(d.ProcessDocument(ctx, path))
	}
	sum.FinishedAt = time.Now().UTC()
	log.Printf("question stage done run_id=%s documents=%d succeeded=%d skipped=%d failed=%d records=%d",
		d.runID, sum.Documents, sum.Succeeded, sum.Skipped, sum.Failed, sum.Records)
	return sum, ctx.Err()
}

// ProcessDocument reads one document and walks its batches in order.
func (d *QuestionDriver) ProcessDocument(ctx context.Context, path string) models.DocumentSummary {
	out := models.DocumentSummary{File: filepath.Base(path)}
	doc, err := documents.Load(path)
	if err != nil {
		log.Printf("document skipped file=%s err=%v", out.File, err)
		out.Status = "unreadable"
		out.Error = err.Error()
		return out
	}
	chunker, err := util.NewChunker(doc.Text, d.cfg.BatchSize)
	if err != nil {
		out.Status = "failed"
		out.Error = err.Error()
		return out
	}
	total := chunker.Count()
	log.Printf("processing document file=%s batches=%d", doc.Name, total)
	for {
		n, text, ok := chunker.Next()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			break
		}
		state, records := d.processBatch(ctx, models.Batch{File: doc.Name, Number: n, Text: text})
		out.Add(state, records)
	}
	out.Finish()
	return out
}

// processBatch moves one batch from pending to a terminal state. Records are written before the
// checkpoint, so a checkpoint always implies written records.
func (d *QuestionDriver) processBatch(ctx context.Context, b models.Batch) (models.BatchState, int) {
	if d.cfg.Resume && d.checkpoint.IsDone(b.File, b.Number) {
		log.Printf("batch skipped file=%s batch=%d reason=checkpoint", b.File, b.Number)
		return models.BatchSkipped, 0
	}
	log.Printf("processing batch file=%s batch=%d", b.File, b.Number)
	bound, err := d.template.Bind(map[string]string{
		prompt.VarDocument:          b.Text,
		prompt.VarNumberOfQuestions: strconv.Itoa(d.cfg.NumQuestions),
	})
	if err != nil {
		log.Printf("batch failed file=%s batch=%d err=%v", b.File, b.Number, err)
		return models.BatchFailed, 0
	}
	res := d.invoker.Invoke(ctx, bound, d.parser, invoker.Unit{RunID: d.runID, File: b.File, Index: b.Number})
	if res.Empty() {
		log.Printf("batch failed file=%s batch=%d attempts=%d err=%v", b.File, b.Number, res.Attempts, res.Err)
		return models.BatchFailed, 0
	}
	if err := d.sink.AppendQuestions(ctx, b.File, b.Number, res.Records); err != nil {
		log.Printf("batch failed file=%s batch=%d stage=sink err=%v", b.File, b.Number, err)
		return models.BatchFailed, 0
	}
	// The records are durable now; a cancellation must not leave them without a checkpoint.
	if err := d.checkpoint.MarkDone(context.WithoutCancel(ctx), b.File, b.Number); err != nil {
		log.Printf("batch failed file=%s batch=%d stage=checkpoint err=%v", b.File, b.Number, err)
		return models.BatchFailed, 0
	}
	log.Printf("batch succeeded file=%s batch=%d questions=%d attempts=%d", b.File, b.Number, len(res.Records), res.Attempts)
	return models.BatchSucceeded, len(res.Records)
}

// IsFatal reports whether err should stop a run rather than be recorded against one unit.
func IsFatal(err error) bool {
	return errors.Is(err, util.ErrConfiguration) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
