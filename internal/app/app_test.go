package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sftgen/internal/config"
	"sftgen/internal/models"
	"sftgen/internal/util"

	"github.com/stretchr/testify/require"
)

const promptsYAML = `question_prompt: |
  Return {number_of_questions} questions as {{"Question 1": "..."}} for:
  {document}
answer_prompt: |
  Using the document below, answer the question inside <answer></endanswer> tags.
  {document}
  Question: {question}
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "guide.txt"), []byte(strings.Repeat("x", 30)), 0o644))
	promptFile := filepath.Join(root, "prompts.yaml")
	require.NoError(t, os.WriteFile(promptFile, []byte(promptsYAML), 0o644))

	return config.Config{
		DocsDir:              docs,
		FilePattern:          "*.txt",
		PromptFile:           promptFile,
		BatchSize:            20,
		NumQuestions:         2,
		MaxRetries:           3,
		RetryIntervalMS:      0,
		Resume:               true,
		QuestionsCSV:         filepath.Join(root, "questions.csv"),
		CheckpointFile:       filepath.Join(root, "checkpoint.csv"),
		AnswersCSV:           filepath.Join(root, "final_data.csv"),
		AnswerCheckpointFile: filepath.Join(root, "answers_checkpoint.csv"),
		Store:                config.StoreCSV,
		SQLitePath:           filepath.Join(root, "sftgen.db"),
		LLMProviders:         "mock",
		DataOutRoot:          filepath.Join(root, "out"),
		Audit:                true,
	}
}

func runBothStages(t *testing.T, cfg config.Config) (models.RunSummary, models.RunSummary) {
	t.Helper()
	ctx := context.Background()
	rt, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close()

	qs, err := rt.RunQuestions(ctx)
	require.NoError(t, err)
	as, err := rt.RunAnswers(ctx)
	require.NoError(t, err)
	return qs, as
}

func TestEndToEndCSV(t *testing.T) {
	cfg := testConfig(t)
	qs, as := runBothStages(t, cfg)

	require.Equal(t, 2, qs.Succeeded)
	require.Equal(t, 4, qs.Records)
	require.Equal(t, 4, as.Succeeded)

	b, err := os.ReadFile(SummaryPath(cfg.DataOutRoot, qs.RunID))
	require.NoError(t, err)
	var saved models.RunSummary
	require.NoError(t, json.Unmarshal(b, &saved))
	require.Equal(t, qs.RunID, saved.RunID)
	require.Equal(t, models.StageQuestions, saved.Stage)

	answers, err := os.ReadFile(cfg.AnswersCSV)
	require.NoError(t, err)
	require.Equal(t, 5, strings.Count(string(answers), "\n"))

	qs, as = runBothStages(t, cfg)
	require.Equal(t, 2, qs.Skipped)
	require.Equal(t, 4, as.Skipped)
}

func TestEndToEndSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreSQLite
	qs, as := runBothStages(t, cfg)
	require.Equal(t, 4, qs.Records)
	require.Equal(t, 4, as.Succeeded)

	_, err := os.Stat(cfg.QuestionsCSV)
	require.True(t, os.IsNotExist(err))
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "mongo"
	_, err := Open(context.Background(), cfg)
	require.ErrorIs(t, err, util.ErrConfiguration)

	cfg = testConfig(t)
	cfg.PromptFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Open(context.Background(), cfg)
	require.ErrorIs(t, err, util.ErrConfiguration)

	cfg = testConfig(t)
	cfg.LLMProviders = "carrier-pigeon"
	_, err = Open(context.Background(), cfg)
	require.ErrorIs(t, err, util.ErrConfiguration)
}

func TestProviderAliasSelectsModel(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		seen = append(seen, body.Model)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"response":"{\"Question 1\": \"Why x?\"}","done":true}`))
	}))
	defer srv.Close()

	cases := []struct {
		providers string
		model     string
		want      string
	}{
		{providers: "ollama:llama3.2:3b", want: "llama3.2:3b"},
		{providers: "ollama:llama3.2:3b", model: "qwen2.5:7b", want: "llama3.2:3b"},
		{providers: "ollama", model: "qwen2.5:7b", want: "qwen2.5:7b"},
		{providers: "ollama", want: "deepseek-r1:1.5b"},
	}
	for _, tc := range cases {
		cfg := testConfig(t)
		cfg.LLMProviders = tc.providers
		cfg.Model = tc.model
		cfg.OllamaBaseURL = srv.URL
		cfg.Audit = false

		rt, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		mu.Lock()
		seen = nil
		mu.Unlock()
		sum, err := rt.RunQuestions(context.Background())
		rt.Close()
		require.NoError(t, err)
		require.Equal(t, 2, sum.Succeeded)

		mu.Lock()
		require.Equal(t, []string{tc.want, tc.want}, seen, tc.providers)
		mu.Unlock()
	}
}
