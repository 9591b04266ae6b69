package workflows

import (
	"fmt"
	"path/filepath"
	"time"

	"sftgen/internal/activities"
	"sftgen/internal/models"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetProgress = "GetProgress"

// Item activities run once: retries of the model call live inside the invoker, and a retried
// document would only be skipped batch by batch through its checkpoints anyway.
var itemRetry = &temporal.RetryPolicy{MaximumAttempts: 1}

var bookkeepingRetry = &temporal.RetryPolicy{
	InitialInterval:    2 * time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    20 * time.Second,
	MaximumAttempts:    3,
}

// QuestionStageWorkflow generates questions for every document, one activity per document, in
// name order. A failed document is recorded and the workflow moves on.
func QuestionStageWorkflow(ctx workflow.Context, input QuestionStageInput) (models.RunSummary, error) {
	progress := StageProgress{RunID: input.RunID, Stage: models.StageQuestions, Status: "running", PerFile: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (StageProgress, error) {
		return progress, nil
	}); err != nil {
		return models.RunSummary{}, err
	}
	sum := models.RunSummary{RunID: input.RunID, Stage: models.StageQuestions, StartedAt: workflow.Now(ctx)}

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         bookkeepingRetry,
	})
	var listOut activities.ListDocumentsOutput
	if err := workflow.ExecuteActivity(listCtx, "ListDocumentsActivity", activities.ListDocumentsInput{
		DocsDir:     input.DocsDir,
		FilePattern: input.FilePattern,
	}).Get(ctx, &listOut); err != nil {
		progress.Status = "failed"
		return sum, err
	}
	progress.Total = len(listOut.Paths)

	itemCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 6 * time.Hour,
		RetryPolicy:         itemRetry,
	})
	for _, path := range listOut.Paths {
		if ctx.Err() != nil {
			break
		}
		name := filepath.Base(path)
		progress.Current = name
		progress.PerFile[name] = "processing"

		var out activities.ProcessDocumentOutput
		err := workflow.ExecuteActivity(itemCtx, "ProcessDocumentActivity", activities.ProcessDocumentInput{
			RunID: input.RunID,
			Path:  path,
		}).Get(ctx, &out)
		if err != nil && ctx.Err() != nil {
			break
		}
		if err != nil {
			out.Summary = models.DocumentSummary{File: name, Status: "failed", Error: err.Error()}
		}
		sum.Merge(out.Summary)
		progress.PerFile[name] = out.Summary.Status
		progress.Done++
		progress.Succeeded = sum.Succeeded
		progress.Skipped = sum.Skipped
		progress.Failed = sum.Failed
	}
	return finish(ctx, sum, &progress)
}

// AnswerStageWorkflow answers the question source row by row, reading it in pages.
func AnswerStageWorkflow(ctx workflow.Context, input AnswerStageInput) (models.RunSummary, error) {
	progress := StageProgress{RunID: input.RunID, Stage: models.StageAnswers, Status: "running", PerFile: map[string]string{}}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (StageProgress, error) {
		return progress, nil
	}); err != nil {
		return models.RunSummary{}, err
	}
	sum := models.RunSummary{RunID: input.RunID, Stage: models.StageAnswers, StartedAt: workflow.Now(ctx)}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	listCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         bookkeepingRetry,
	})
	itemCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy:         itemRetry,
	})

	perFile := map[string]*models.DocumentSummary{}
	var order []string
	offset := 0
pages:
	for ctx.Err() == nil {
		var page activities.ListQuestionRowsOutput
		if err := workflow.ExecuteActivity(listCtx, "ListQuestionRowsActivity", activities.ListQuestionRowsInput{
			Offset: offset,
			Limit:  pageSize,
		}).Get(ctx, &page); err != nil {
			if ctx.Err() != nil {
				break
			}
			progress.Status = "failed"
			return sum, err
		}
		progress.Total = page.Total
		if len(page.Rows) == 0 {
			break
		}
		for _, row := range page.Rows {
			if ctx.Err() != nil {
				break pages
			}
			offset = row.Row
			progress.Current = fmt.Sprintf("row %d of %d", row.Row, page.Total)

			var out activities.ProcessQuestionRowOutput
			err := workflow.ExecuteActivity(itemCtx, "ProcessQuestionRowActivity", activities.ProcessQuestionRowInput{
				RunID: input.RunID,
				Row:   row,
			}).Get(ctx, &out)
			if err != nil && ctx.Err() != nil {
				break pages
			}
			if err != nil {
				out.State = models.BatchFailed
				out.Error = err.Error()
			}
			progress.Done++
			if out.State == models.BatchInvalid {
				sum.Invalid++
				progress.Invalid++
				continue
			}
			ds, ok := perFile[row.File]
			if !ok {
				ds = &models.DocumentSummary{File: row.File}
				perFile[row.File] = ds
				order = append(order, row.File)
			}
			ds.Add(out.State, recordsFor(out.State))
			switch out.State {
			case models.BatchSucceeded:
				progress.Succeeded++
			case models.BatchSkipped:
				progress.Skipped++
			case models.BatchFailed:
				progress.Failed++
			}
			progress.PerFile[row.File] = fmt.Sprintf("%d/%d answered", ds.Succeeded+ds.Skipped, ds.Batches)
		}
	}
	for _, f := range order {
		ds := perFile[f]
		ds.Finish()
		sum.Merge(*ds)
	}
	return finish(ctx, sum, &progress)
}

// finish writes the run summary and settles the final status. A cancelled workflow still writes
// what it completed, flagged as interrupted, and then reports the cancellation.
func finish(ctx workflow.Context, sum models.RunSummary, progress *StageProgress) (models.RunSummary, error) {
	interrupted := ctx.Err() != nil
	progress.Current = ""
	sum.FinishedAt = workflow.Now(ctx)

	summaryCtx, _ := workflow.NewDisconnectedContext(ctx)
	summaryCtx = workflow.WithActivityOptions(summaryCtx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         bookkeepingRetry,
	})
	var out activities.WriteRunSummaryOutput
	if err := workflow.ExecuteActivity(summaryCtx, "WriteRunSummaryActivity", activities.WriteRunSummaryInput{
		Summary:     sum,
		Interrupted: interrupted,
	}).Get(summaryCtx, &out); err != nil {
		workflow.GetLogger(ctx).Warn("write run summary failed", "run_id", sum.RunID, "error", err)
	}

	if interrupted {
		progress.Status = "cancelled"
		return sum, temporal.NewCanceledError()
	}
	progress.Status = "completed"
	return sum, nil
}

func recordsFor(state models.BatchState) int {
	if state == models.BatchSucceeded {
		return 1
	}
	return 0
}

func WorkflowID(stage models.Stage, runID string) string {
	return string(stage) + "-" + runID
}
