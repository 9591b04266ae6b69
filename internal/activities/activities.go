// Package activities exposes the pipeline's units of work as Temporal activities. Each
// activity runs one document or one question row through the same drivers the CLIs use.
package activities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"sftgen/internal/app"
	"sftgen/internal/documents"
	"sftgen/internal/models"
	"sftgen/internal/pipeline"
	"sftgen/internal/util"

	"go.temporal.io/sdk/temporal"
)

var errStopPaging = errors.New("stop paging")

// pagedSource is implemented by the SQL stores, which can seek to an offset. The CSV source is
// scanned from the first row on every page.
type pagedSource interface {
	QuestionPage(ctx context.Context, offset, limit int) ([]models.QuestionRow, error)
}

type Activities struct {
	rt *app.Runtime

	mu        sync.Mutex
	questions map[string]*pipeline.QuestionDriver
	answers   map[string]*pipeline.AnswerDriver
}

func New(rt *app.Runtime) *Activities {
	return &Activities{
		rt:        rt,
		questions: map[string]*pipeline.QuestionDriver{},
		answers:   map[string]*pipeline.AnswerDriver{},
	}
}

func (a *Activities) ListDocumentsActivity(ctx context.Context, in ListDocumentsInput) (ListDocumentsOutput, error) {
	_ = ctx
	dir, err := util.WithinDir(a.rt.Config.DocsDir, in.DocsDir)
	if err != nil {
		return ListDocumentsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidDocsDir", err)
	}
	pattern := in.FilePattern
	if pattern == "" {
		pattern = a.rt.Config.FilePattern
	}
	if strings.ContainsAny(pattern, `/\`) {
		err := fmt.Errorf("%w: file pattern %q must not contain path separators", util.ErrConfiguration, pattern)
		return ListDocumentsOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidFilePattern", err)
	}
	paths, err := documents.Discover(dir, pattern)
	if err != nil {
		return ListDocumentsOutput{}, err
	}
	return ListDocumentsOutput{Paths: paths}, nil
}

func (a *Activities) ProcessDocumentActivity(ctx context.Context, in ProcessDocumentInput) (ProcessDocumentOutput, error) {
	d, err := a.questionDriver(ctx, in.RunID)
	if err != nil {
		return ProcessDocumentOutput{}, err
	}
	return ProcessDocumentOutput{Summary: d.ProcessDocument(ctx, in.Path)}, nil
}

// ListQuestionRowsActivity returns one page of the question source so workflow payloads stay small.
func (a *Activities) ListQuestionRowsActivity(ctx context.Context, in ListQuestionRowsInput) (ListQuestionRowsOutput, error) {
	src := a.rt.QuestionSource()
	total, err := src.CountQuestions(ctx)
	if err != nil {
		return ListQuestionRowsOutput{}, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 500
	}
	out := ListQuestionRowsOutput{Total: total, Rows: make([]models.QuestionRow, 0, limit)}
	if ps, ok := src.(pagedSource); ok {
		rows, err := ps.QuestionPage(ctx, in.Offset, limit)
		if err != nil {
			return ListQuestionRowsOutput{}, err
		}
		out.Rows = append(out.Rows, rows...)
		return out, nil
	}
	err = src.ForEachQuestion(ctx, func(row models.QuestionRow) error {
		if row.Row <= in.Offset {
			return nil
		}
		out.Rows = append(out.Rows, row)
		if len(out.Rows) >= limit {
			return errStopPaging
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return ListQuestionRowsOutput{}, err
	}
	return out, nil
}

func (a *Activities) ProcessQuestionRowActivity(ctx context.Context, in ProcessQuestionRowInput) (ProcessQuestionRowOutput, error) {
	d, err := a.answerDriver(ctx, in.RunID)
	if err != nil {
		return ProcessQuestionRowOutput{}, err
	}
	return ProcessQuestionRowOutput{State: d.ProcessRow(ctx, in.Row)}, nil
}

// WriteRunSummaryActivity persists the run summary and drops the run's cached drivers.
func (a *Activities) WriteRunSummaryActivity(ctx context.Context, in WriteRunSummaryInput) (WriteRunSummaryOutput, error) {
	a.mu.Lock()
	delete(a.questions, in.Summary.RunID)
	delete(a.answers, in.Summary.RunID)
	a.mu.Unlock()

	var runErr error
	if in.Interrupted {
		runErr = context.Canceled
	}
	return WriteRunSummaryOutput{Path: a.rt.FinishRun(ctx, in.Summary, runErr)}, nil
}

// questionDriver keeps one driver per run so the checkpoint snapshot is loaded once.
func (a *Activities) questionDriver(ctx context.Context, runID string) (*pipeline.QuestionDriver, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d, ok := a.questions[runID]; ok {
		return d, nil
	}
	d, err := a.rt.QuestionDriver(ctx, runID)
	if err != nil {
		return nil, err
	}
	a.questions[runID] = d
	return d, nil
}

func (a *Activities) answerDriver(ctx context.Context, runID string) (*pipeline.AnswerDriver, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d, ok := a.answers[runID]; ok {
		return d, nil
	}
	d, err := a.rt.AnswerDriver(ctx, runID)
	if err != nil {
		return nil, err
	}
	a.answers[runID] = d
	return d, nil
}
