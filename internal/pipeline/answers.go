package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"sftgen/internal/documents"
	"sftgen/internal/invoker"
	"sftgen/internal/models"
	"sftgen/internal/parser"
	"sftgen/internal/prompt"
	"sftgen/internal/util"
)

type AnswerConfig struct {
	DocsDir string
	// Resume skips rows that already have an answer checkpoint.
	Resume bool
}

type AnswerDriver struct {
	cfg        AnswerConfig
	template   *prompt.Template
	invoker    Invoker
	source     QuestionSource
	sink       AnswerSink
	checkpoint CheckpointStore
	parser     parser.Parser
	runID      string

	docs map[string]cachedDoc
}

type cachedDoc struct {
	text string
	err  error
}

// NewAnswerDriver builds the answer stage. checkpoint may be nil, in which case completed rows
// are tracked in memory only.
func NewAnswerDriver(cfg AnswerConfig, template string, inv Invoker, source QuestionSource, sink AnswerSink, checkpoint CheckpointStore) (*AnswerDriver, error) {
	tpl, err := prompt.Parse(template)
	if err != nil {
		return nil, fmt.Errorf("answer prompt: %w", err)
	}
	if checkpoint == nil {
		checkpoint = NewMemoryCheckpoint()
	}
	return &AnswerDriver{
		cfg:        cfg,
		template:   tpl,
		invoker:    inv,
		source:     source,
		sink:       sink,
		checkpoint: checkpoint,
		parser:     parser.AnswerParser{},
		docs:       map[string]cachedDoc{},
	}, nil
}

func (d *AnswerDriver) WithRunID(runID string) *AnswerDriver {
	d.runID = runID
	return d
}

// ProcessQuestions answers every row of the question source in order. Row-level failures are
// recorded in the summary; only source errors and context cancellation are returned.
func (d *AnswerDriver) ProcessQuestions(ctx context.Context) (models.RunSummary, error) {
	sum := models.RunSummary{RunID: d.runID, Stage: models.StageAnswers, StartedAt: time.Now().UTC()}
	total, err := d.source.CountQuestions(ctx)
	if err != nil {
		return sum, fmt.Errorf("count questions: %w", err)
	}
	log.Printf("answer stage start run_id=%s rows=%d", d.runID, total)

	perFile := map[string]*models.DocumentSummary{}
	var order []string
	err = d.source.ForEachQuestion(ctx, func(row models.QuestionRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Printf("processing row %d of %d", row.Row, total)
		state := d.ProcessRow(ctx, row)
		if state == models.BatchInvalid {
			sum.Invalid++
			return nil
		}
		ds, ok := perFile[row.File]
		if !ok {
			ds = &models.DocumentSummary{File: row.File}
			perFile[row.File] = ds
			order = append(order, row.File)
		}
		ds.Add(state, recordsFor(state))
		if state == models.BatchFailed && ds.Error == "" {
			if c, ok := d.docs[row.File]; ok && c.err != nil {
				ds.Error = c.err.Error()
			}
		}
		return nil
	})
	for _, f := range order {
		ds := perFile[f]
		ds.Finish()
		sum.Merge(*ds)
	}
	sum.FinishedAt = time.Now().UTC()
	log.Printf("answer stage done run_id=%s rows=%d succeeded=%d skipped=%d failed=%d invalid=%d",
		d.runID, total, sum.Succeeded, sum.Skipped, sum.Failed, sum.Invalid)
	return sum, err
}

func recordsFor(state models.BatchState) int {
	if state == models.BatchSucceeded {
		return 1
	}
	return 0
}

// ProcessRow answers one question. Rows missing File or Question are BatchInvalid.
func (d *AnswerDriver) ProcessRow(ctx context.Context, row models.QuestionRow) models.BatchState {
	if strings.TrimSpace(row.File) == "" || strings.TrimSpace(row.Question) == "" {
		log.Printf("row skipped row=%d reason=missing file or question", row.Row)
		return models.BatchInvalid
	}
	if d.cfg.Resume && d.checkpoint.IsDone(row.File, row.Row) {
		log.Printf("row skipped row=%d file=%s reason=checkpoint", row.Row, row.File)
		return models.BatchSkipped
	}
	text, err := d.document(row.File)
	if err != nil {
		log.Printf("row failed row=%d file=%s err=%v", row.Row, row.File, err)
		return models.BatchFailed
	}
	bound, err := d.template.Bind(map[string]string{
		prompt.VarDocument: text,
		prompt.VarQuestion: row.Question,
	})
	if err != nil {
		log.Printf("row failed row=%d file=%s err=%v", row.Row, row.File, err)
		return models.BatchFailed
	}
	res := d.invoker.Invoke(ctx, bound, d.parser, invoker.Unit{RunID: d.runID, File: row.File, Index: row.Row})
	if res.Empty() {
		log.Printf("row failed row=%d file=%s attempts=%d err=%v", row.Row, row.File, res.Attempts, res.Err)
		return models.BatchFailed
	}
	rec := models.AnswerRecord{File: row.File, BatchNumber: row.BatchNumber, Question: row.Question, Answer: res.Records[0]}
	if err := d.sink.AppendAnswer(ctx, rec); err != nil {
		log.Printf("row failed row=%d file=%s stage=sink err=%v", row.Row, row.File, err)
		return models.BatchFailed
	}
	if err := d.checkpoint.MarkDone(context.WithoutCancel(ctx), row.File, row.Row); err != nil {
		log.Printf("row failed row=%d file=%s stage=checkpoint err=%v", row.Row, row.File, err)
		return models.BatchFailed
	}
	log.Printf("row succeeded row=%d file=%s answer=%q", row.Row, row.File, util.DisplaySnippet(rec.Answer, 0))
	return models.BatchSucceeded
}

// document reads a source document once per run. Read failures are cached too.
func (d *AnswerDriver) document(name string) (string, error) {
	if c, ok := d.docs[name]; ok {
		return c.text, c.err
	}
	doc, err := documents.Load(util.SafeJoin(d.cfg.DocsDir, name))
	c := cachedDoc{text: doc.Text, err: err}
	d.docs[name] = c
	return c.text, c.err
}
