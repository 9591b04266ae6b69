// Package app assembles a runnable pipeline from configuration: prompts, backend, store and
// audit sink.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"sftgen/internal/config"
	"sftgen/internal/invoker"
	"sftgen/internal/models"
	"sftgen/internal/pipeline"
	"sftgen/internal/providers"
	"sftgen/internal/storage"
	"sftgen/internal/storage/csvstore"
	"sftgen/internal/storage/sqlite"
	"sftgen/internal/util"

	"github.com/google/uuid"
)

type Runtime struct {
	Config    config.Config
	Prompts   config.Prompts
	Providers *providers.Manager

	db     *storage.DB
	sqlite *sqlite.Store
	runs   *storage.RunRepo
	audit  invoker.AuditSink
}

// Open validates the prompt file, builds the backends and opens the configured store. Every
// error it returns wraps util.ErrConfiguration.
func Open(ctx context.Context, cfg config.Config) (*Runtime, error) {
	prompts, err := config.LoadPrompts(cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", util.ErrConfiguration, cfg.BatchSize)
	}
	mgr, err := providers.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrConfiguration, err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	rt := &Runtime{Config: cfg, Prompts: prompts, Providers: mgr}

	switch cfg.Store {
	case config.StoreCSV:
	case config.StoreSQLite:
		rt.sqlite, err = sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("%w: open sqlite %s: %v", util.ErrConfiguration, cfg.SQLitePath, err)
		}
	case config.StorePostgres:
		rt.db, err = storage.NewDB(ctx, cfg.PostgresURL)
		if err == nil {
			err = rt.db.EnsureSchema(ctx)
		}
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("%w: %v", util.ErrConfiguration, err)
		}
		rt.runs = storage.NewRunRepo(rt.db)
	default:
		rt.Close()
		return nil, fmt.Errorf("%w: unknown store %q", util.ErrConfiguration, cfg.Store)
	}

	if cfg.Audit {
		if rt.db != nil {
			rt.audit = storage.NewLLMAuditRepo(rt.db)
		} else {
			rt.audit = invoker.LogAudit{}
		}
	}
	return rt, nil
}

func (r *Runtime) Close() {
	if r.Providers != nil {
		if err := r.Providers.Close(); err != nil {
			log.Printf("close providers: %v", err)
		}
	}
	if r.sqlite != nil {
		if err := r.sqlite.Close(); err != nil {
			log.Printf("close sqlite: %v", err)
		}
	}
	r.db.Close()
}

func (r *Runtime) invoker(temperature float64) *invoker.Invoker {
	provider, _ := r.Providers.FirstLLMProvider()
	return invoker.New(provider, invoker.Options{
		MaxRetries:  r.Config.MaxRetries,
		Interval:    retryInterval(r.Config.RetryIntervalMS),
		Temperature: temperature,
		Audit:       r.audit,
	})
}

func (r *Runtime) checkpoint(ctx context.Context, stage models.Stage) (pipeline.CheckpointStore, error) {
	switch {
	case r.sqlite != nil:
		return r.sqlite.Checkpoint(ctx, stage)
	case r.db != nil:
		return storage.LoadCheckpointRepo(ctx, r.db, stage)
	case stage == models.StageAnswers:
		return csvstore.OpenCheckpoint(r.Config.AnswerCheckpointFile, csvstore.AnswerCheckpointHeader)
	default:
		return csvstore.OpenCheckpoint(r.Config.CheckpointFile, csvstore.CheckpointHeader)
	}
}

func (r *Runtime) questionSink() pipeline.QuestionSink {
	switch {
	case r.sqlite != nil:
		return r.sqlite
	case r.db != nil:
		return storage.NewRecordRepo(r.db)
	default:
		return csvstore.NewQuestionSink(r.Config.QuestionsCSV)
	}
}

// QuestionSource is where the answer stage reads its questions for the configured store.
func (r *Runtime) QuestionSource() pipeline.QuestionSource {
	switch {
	case r.sqlite != nil:
		return r.sqlite
	case r.db != nil:
		return storage.NewRecordRepo(r.db)
	default:
		return csvstore.NewQuestionSink(r.Config.QuestionsCSV)
	}
}

func (r *Runtime) answerSink() pipeline.AnswerSink {
	switch {
	case r.sqlite != nil:
		return r.sqlite
	case r.db != nil:
		return storage.NewRecordRepo(r.db)
	default:
		return csvstore.NewAnswerSink(r.Config.AnswersCSV)
	}
}

// QuestionDriver builds a question-stage driver with a freshly loaded checkpoint snapshot.
func (r *Runtime) QuestionDriver(ctx context.Context, runID string) (*pipeline.QuestionDriver, error) {
	cp, err := r.checkpoint(ctx, models.StageQuestions)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	d, err := pipeline.NewQuestionDriver(pipeline.QuestionConfig{
		BatchSize:    r.Config.BatchSize,
		NumQuestions: r.Config.NumQuestions,
		Resume:       r.Config.Resume,
	}, r.Prompts.Question, r.invoker(r.Config.QuestionTemperature), cp, r.questionSink())
	if err != nil {
		return nil, err
	}
	return d.WithRunID(runID), nil
}

func (r *Runtime) AnswerDriver(ctx context.Context, runID string) (*pipeline.AnswerDriver, error) {
	cp, err := r.checkpoint(ctx, models.StageAnswers)
	if err != nil {
		return nil, fmt.Errorf("open answer checkpoint: %w", err)
	}
	d, err := pipeline.NewAnswerDriver(pipeline.AnswerConfig{
		DocsDir: r.Config.DocsDir,
		Resume:  r.Config.Resume,
	}, r.Prompts.Answer, r.invoker(r.Config.AnswerTemperature), r.QuestionSource(), r.answerSink(), cp)
	if err != nil {
		return nil, err
	}
	return d.WithRunID(runID), nil
}

// RunQuestions runs the question stage over the documents directory and records the summary.
func (r *Runtime) RunQuestions(ctx context.Context) (models.RunSummary, error) {
	runID := uuid.NewString()
	r.startRun(ctx, runID, models.StageQuestions)
	d, err := r.QuestionDriver(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	sum, err := d.ProcessDirectory(ctx, r.Config.DocsDir, r.Config.FilePattern)
	r.FinishRun(ctx, sum, err)
	return sum, err
}

func (r *Runtime) RunAnswers(ctx context.Context) (models.RunSummary, error) {
	runID := uuid.NewString()
	r.startRun(ctx, runID, models.StageAnswers)
	d, err := r.AnswerDriver(ctx, runID)
	if err != nil {
		return models.RunSummary{}, err
	}
	sum, err := d.ProcessQuestions(ctx)
	r.FinishRun(ctx, sum, err)
	return sum, err
}

func (r *Runtime) startRun(ctx context.Context, runID string, stage models.Stage) {
	if r.runs == nil {
		return
	}
	if err := r.runs.CreateRun(ctx, runID, stage); err != nil {
		log.Printf("record run start failed run_id=%s err=%v", runID, err)
	}
}

// FinishRun writes the summary JSON under the data-out root and, with the Postgres store, the
// runs table. Failures are logged; the generated data is already durable at this point.
func (r *Runtime) FinishRun(ctx context.Context, sum models.RunSummary, runErr error) string {
	status := "completed"
	if runErr != nil {
		status = "interrupted"
	}
	path := SummaryPath(r.Config.DataOutRoot, sum.RunID)
	if err := util.WriteJSONAtomic(path, sum); err != nil {
		log.Printf("write run summary failed run_id=%s err=%v", sum.RunID, err)
		path = ""
	}
	if r.runs != nil {
		if err := r.runs.FinishRun(context.WithoutCancel(ctx), sum, status); err != nil {
			log.Printf("record run finish failed run_id=%s err=%v", sum.RunID, err)
		}
	}
	log.Printf("run %s run_id=%s stage=%s summary=%s", status, sum.RunID, sum.Stage, path)
	return path
}

func SummaryPath(dataOut, runID string) string {
	return filepath.Join(dataOut, "runs", runID, "summary.json")
}

func retryInterval(ms int) time.Duration {
	switch {
	case ms < 0:
		return invoker.DefaultInterval
	case ms == 0:
		return invoker.NoInterval
	}
	return time.Duration(ms) * time.Millisecond
}
