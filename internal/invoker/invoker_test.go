package invoker

import (
	"context"
	"errors"
	"testing"
	"time"

	"sftgen/internal/models"
	"sftgen/internal/parser"
	"sftgen/internal/providers"
	"sftgen/internal/util"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	args := m.Called(req.Operation, req.Prompt)
	return providers.GenerateResponse{Text: args.String(0)}, providers.ProviderInfo{Name: "fake", Model: "m"}, args.Error(1)
}

type recordingAudit struct {
	calls []models.LLMCall
}

func (r *recordingAudit) RecordCall(ctx context.Context, call models.LLMCall) error {
	r.calls = append(r.calls, call)
	return nil
}

const goodQuestions = `{"Question 1": "What is a batch?", "Question 2": "Why checkpoint?"}`

func TestInvokeSucceedsAfterFailures(t *testing.T) {
	for k := 0; k < 3; k++ {
		p := &mockProvider{}
		if k > 0 {
			p.On("Generate", "questions", "prompt").Return("", errors.New("connection refused")).Times(k)
		}
		p.On("Generate", "questions", "prompt").Return(goodQuestions, nil).Once()

		inv := New(p, Options{MaxRetries: 3, Interval: NoInterval})
		res := inv.Invoke(context.Background(), "prompt", parser.QuestionParser{}, Unit{File: "a.txt", Index: 1})

		require.NoError(t, res.Err)
		require.Equal(t, k+1, res.Attempts)
		require.Equal(t, []string{"What is a batch?", "Why checkpoint?"}, res.Records)
		p.AssertNumberOfCalls(t, "Generate", k+1)
	}
}

func TestInvokeExhaustsRetries(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", "questions", "prompt").Return("no json here", nil)
	audit := &recordingAudit{}

	inv := New(p, Options{MaxRetries: 3, Interval: NoInterval, Audit: audit})
	res := inv.Invoke(context.Background(), "prompt", parser.QuestionParser{}, Unit{File: "a.txt", Index: 2})

	require.True(t, res.Empty())
	require.Equal(t, 3, res.Attempts)
	require.ErrorIs(t, res.Err, util.ErrEmptyResult)
	p.AssertNumberOfCalls(t, "Generate", 3)

	require.Len(t, audit.calls, 3)
	for i, c := range audit.calls {
		require.Equal(t, i+1, c.Attempt)
		require.Equal(t, "error", c.Status)
		require.Equal(t, models.StageQuestions, c.Stage)
		require.Equal(t, "a.txt", c.File)
		require.Len(t, c.CallID, 26)
	}
	require.NotEqual(t, audit.calls[0].CallID, audit.calls[1].CallID)
}

func TestInvokeRetriesMissingAnswerTag(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", "answers", "q").Return("just prose", nil).Once()
	p.On("Generate", "answers", "q").Return("   ", nil).Once()
	p.On("Generate", "answers", "q").Return("<answer> 42 </endanswer>", nil).Once()

	res := New(p, Options{MaxRetries: 3, Interval: NoInterval}).Invoke(context.Background(), "q", parser.AnswerParser{}, Unit{})
	require.NoError(t, res.Err)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, []string{"42"}, res.Records)
}

func TestInvokeNoWaitAfterFinalAttempt(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", "questions", "prompt").Return("", errors.New("boom"))

	start := time.Now()
	res := New(p, Options{MaxRetries: 2, Interval: 200 * time.Millisecond}).
		Invoke(context.Background(), "prompt", parser.QuestionParser{}, Unit{})
	elapsed := time.Since(start)

	require.Equal(t, 2, res.Attempts)
	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	require.Less(t, elapsed, 400*time.Millisecond)
}

func TestInvokeStopsOnCancel(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", "questions", "prompt").Return("", errors.New("boom"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	res := New(p, Options{MaxRetries: 5, Interval: time.Hour}).
		Invoke(ctx, "prompt", parser.QuestionParser{}, Unit{})

	require.ErrorIs(t, res.Err, context.Canceled)
	require.Equal(t, 1, res.Attempts)
	require.True(t, res.Empty())
}

func TestInvokeSendsTemperatureAndModel(t *testing.T) {
	var got providers.GenerateRequest
	p := providerFunc(func(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
		got = req
		return providers.GenerateResponse{Text: goodQuestions}, providers.ProviderInfo{}, nil
	})
	res := New(p, Options{Temperature: 0.9, Model: "llama3"}).Invoke(context.Background(), "x", parser.QuestionParser{}, Unit{})
	require.NoError(t, res.Err)
	require.Equal(t, 0.9, got.Options[providers.OptTemperature])
	require.Equal(t, "llama3", got.Options[providers.OptModel])
	require.Equal(t, "questions", got.Operation)
}

type providerFunc func(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)

func (f providerFunc) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	return f(ctx, req)
}

func TestNewIntervalDefaults(t *testing.T) {
	require.Equal(t, DefaultInterval, New(nil, Options{}).opts.Interval)
	require.Equal(t, DefaultMaxRetries, New(nil, Options{}).MaxRetries())
	require.Zero(t, New(nil, Options{Interval: NoInterval}).opts.Interval)
	require.Equal(t, 5*time.Millisecond, New(nil, Options{Interval: 5 * time.Millisecond}).opts.Interval)
}
