package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"sftgen/internal/invoker"
	"sftgen/internal/models"
	"sftgen/internal/providers"
	"sftgen/internal/storage/csvstore"

	"github.com/stretchr/testify/require"
)

const questionTemplate = `Write {number_of_questions} questions as {{"Question 1": "..."}} about:
{document}`

const answerTemplate = `Context:
{document}
Question: {question}`

// countingProvider wraps a provider and counts Generate calls.
type countingProvider struct {
	inner providers.LLMProvider
	calls atomic.Int32
}

func (c *countingProvider) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	c.calls.Add(1)
	return c.inner.Generate(ctx, req)
}

type staticProvider string

func (s staticProvider) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	return providers.GenerateResponse{Text: string(s)}, providers.ProviderInfo{Name: "static"}, nil
}

type fixture struct {
	docs       string
	out        string
	checkpoint string
	questions  string
}

func newFixture(t *testing.T, files map[string]string) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		docs:       filepath.Join(root, "docs"),
		out:        root,
		checkpoint: filepath.Join(root, "checkpoint.csv"),
		questions:  filepath.Join(root, "questions.csv"),
	}
	require.NoError(t, os.MkdirAll(f.docs, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(f.docs, name), []byte(body), 0o644))
	}
	return f
}

func (f fixture) questionDriver(t *testing.T, p providers.LLMProvider, resume bool) *QuestionDriver {
	t.Helper()
	cp, err := csvstore.OpenCheckpoint(f.checkpoint, csvstore.CheckpointHeader)
	require.NoError(t, err)
	inv := invoker.New(p, invoker.Options{MaxRetries: 3, Interval: invoker.NoInterval})
	d, err := NewQuestionDriver(QuestionConfig{BatchSize: 10, NumQuestions: 2, Resume: resume}, questionTemplate, inv, cp, csvstore.NewQuestionSink(f.questions))
	require.NoError(t, err)
	return d
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestQuestionStageIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt": strings.Repeat("a", 25),
		"b.txt": strings.Repeat("b", 10),
	})
	ctx := context.Background()
	p := &countingProvider{inner: providers.NewMockProvider(2)}

	sum, err := f.questionDriver(t, p, true).ProcessDirectory(ctx, f.docs, "*.txt")
	require.NoError(t, err)
	require.Equal(t, 2, sum.Documents)
	require.Equal(t, 4, sum.Succeeded)
	require.Equal(t, 8, sum.Records)
	require.EqualValues(t, 4, p.calls.Load())

	questionsAfterFirst := read(t, f.questions)
	checkpointsAfterFirst := read(t, f.checkpoint)
	require.Equal(t, 9, strings.Count(questionsAfterFirst, "\n"))
	require.Equal(t, "File,Batch_Number\na.txt,1\na.txt,2\na.txt,3\nb.txt,1\n", checkpointsAfterFirst)

	sum, err = f.questionDriver(t, p, true).ProcessDirectory(ctx, f.docs, "*.txt")
	require.NoError(t, err)
	require.Equal(t, 4, sum.Skipped)
	require.Zero(t, sum.Succeeded)
	require.EqualValues(t, 4, p.calls.Load())
	require.Equal(t, questionsAfterFirst, read(t, f.questions))
	require.Equal(t, checkpointsAfterFirst, read(t, f.checkpoint))
}

func TestQuestionStageWithoutResumeReprocesses(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "short doc"})
	ctx := context.Background()
	p := providers.NewMockProvider(1)

	_, err := f.questionDriver(t, p, true).ProcessDirectory(ctx, f.docs, "*.txt")
	require.NoError(t, err)
	sum, err := f.questionDriver(t, p, false).ProcessDirectory(ctx, f.docs, "*.txt")
	require.NoError(t, err)
	require.Equal(t, 1, sum.Succeeded)

	require.Equal(t, 3, strings.Count(read(t, f.questions), "\n"))
	require.Equal(t, "File,Batch_Number\na.txt,1\n", read(t, f.checkpoint))
}

func TestQuestionStageIsolatesUnreadableDocument(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.txt": "first document",
		"b.pdf": "this is not a pdf",
		"c.txt": "third document",
	})
	sum, err := f.questionDriver(t, providers.NewMockProvider(1), true).ProcessDirectory(context.Background(), f.docs, "*")
	require.NoError(t, err)

	require.Equal(t, 3, sum.Documents)
	require.Equal(t, 1, sum.Unreadable)
	require.Equal(t, "unreadable", sum.PerFile[1].Status)
	require.Equal(t, "b.pdf", sum.PerFile[1].File)
	require.Equal(t, "completed", sum.PerFile[0].Status)
	require.Equal(t, "completed", sum.PerFile[2].Status)

	cp := read(t, f.checkpoint)
	require.Contains(t, cp, "a.txt,1")
	require.Contains(t, cp, "c.txt,1")
	require.NotContains(t, cp, "b.pdf")
}

func TestFailedBatchLeavesNoTrace(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "0123456789abc"})
	p := &countingProvider{inner: staticProvider("I cannot help with that.")}

	sum, err := f.questionDriver(t, p, true).ProcessDirectory(context.Background(), f.docs, "*.txt")
	require.NoError(t, err)
	require.Equal(t, 2, sum.Failed)
	require.Zero(t, sum.Records)
	require.Equal(t, "failed", sum.PerFile[0].Status)
	require.EqualValues(t, 6, p.calls.Load())

	_, err = os.Stat(f.questions)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.checkpoint)
	require.True(t, os.IsNotExist(err))
}

func TestProcessDirectoryMissingDir(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.questionDriver(t, providers.NewMockProvider(1), true).ProcessDirectory(context.Background(), filepath.Join(f.docs, "nope"), "*.txt")
	require.Error(t, err)
}

func TestNewQuestionDriverRejectsBadBatchSize(t *testing.T) {
	_, err := NewQuestionDriver(QuestionConfig{BatchSize: 0}, questionTemplate, nil, NewMemoryCheckpoint(), nil)
	require.Error(t, err)
}

func TestAnswerStage(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": "alpha document"})
	require.NoError(t, os.WriteFile(f.questions, []byte(
		"File,Batch_Number,Question\n"+
			"a.txt,1,What is alpha?\n"+
			",1,No file?\n"+
			"missing.txt,2,Where is it?\n"+
			"a.txt,2,\n"+
			"a.txt,2,Why alpha?\n"), 0o644))
	answers := filepath.Join(f.out, "final_data.csv")
	answerCP := filepath.Join(f.out, "answers_checkpoint.csv")
	ctx := context.Background()
	p := &countingProvider{inner: providers.NewMockProvider(1)}

	run := func() models.RunSummary {
		cp, err := csvstore.OpenCheckpoint(answerCP, csvstore.AnswerCheckpointHeader)
		require.NoError(t, err)
		d, err := NewAnswerDriver(AnswerConfig{DocsDir: f.docs, Resume: true}, answerTemplate,
			invoker.New(p, invoker.Options{MaxRetries: 2, Interval: invoker.NoInterval}), csvstore.NewQuestionSink(f.questions), csvstore.NewAnswerSink(answers), cp)
		require.NoError(t, err)
		sum, err := d.ProcessQuestions(ctx)
		require.NoError(t, err)
		return sum
	}

	sum := run()
	require.Equal(t, 2, sum.Succeeded)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, 2, sum.Invalid)
	require.Equal(t, 1, sum.Unreadable)
	require.EqualValues(t, 2, p.calls.Load())

	out := read(t, answers)
	require.True(t, strings.HasPrefix(out, "File,Batch_Number,Question,Answer\n"))
	require.Contains(t, out, "a.txt,1,What is alpha?,Mock answer")
	require.Contains(t, out, "a.txt,2,Why alpha?,Mock answer")
	require.Equal(t, "File,Row\na.txt,1\na.txt,5\n", read(t, answerCP))

	sum = run()
	require.Equal(t, 2, sum.Skipped)
	require.Zero(t, sum.Succeeded)
	require.EqualValues(t, 2, p.calls.Load())
	require.Equal(t, out, read(t, answers))
}

// cancelAfterWrite cancels the run as soon as the first batch is durably written.
type cancelAfterWrite struct {
	inner  QuestionSink
	cancel context.CancelFunc
}

func (c cancelAfterWrite) AppendQuestions(ctx context.Context, file string, batch int, questions []string) error {
	err := c.inner.AppendQuestions(ctx, file, batch, questions)
	c.cancel()
	return err
}

func TestCancellationAfterSinkWriteStillCheckpoints(t *testing.T) {
	f := newFixture(t, map[string]string{"a.txt": strings.Repeat("a", 15)})
	p := &countingProvider{inner: providers.NewMockProvider(1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cp, err := csvstore.OpenCheckpoint(f.checkpoint, csvstore.CheckpointHeader)
	require.NoError(t, err)
	sink := cancelAfterWrite{inner: csvstore.NewQuestionSink(f.questions), cancel: cancel}
	d, err := NewQuestionDriver(QuestionConfig{BatchSize: 10, NumQuestions: 1, Resume: true}, questionTemplate,
		invoker.New(p, invoker.Options{MaxRetries: 1, Interval: invoker.NoInterval}), cp, sink)
	require.NoError(t, err)

	sum := d.ProcessDocument(ctx, filepath.Join(f.docs, "a.txt"))
	require.Equal(t, 1, sum.Succeeded)
	require.Equal(t, "File,Batch_Number\na.txt,1\n", read(t, f.checkpoint))

	_, err = f.questionDriver(t, p, true).ProcessDirectory(context.Background(), f.docs, "*.txt")
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(read(t, f.questions), "a.txt,1,"))
	require.Equal(t, 1, strings.Count(read(t, f.questions), "a.txt,2,"))
	require.EqualValues(t, 2, p.calls.Load())
}
