package storage

import (
	"context"
	"os"
	"testing"

	"sftgen/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database named by SFTGEN_TEST_POSTGRES_URL.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("SFTGEN_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("SFTGEN_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	db, err := NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func TestCheckpointRepoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	file := "doc-" + uuid.NewString() + ".txt"

	cp, err := LoadCheckpointRepo(ctx, db, models.StageQuestions)
	require.NoError(t, err)
	require.NoError(t, cp.MarkDone(ctx, file, 1))
	require.NoError(t, cp.MarkDone(ctx, file, 1))

	reloaded, err := LoadCheckpointRepo(ctx, db, models.StageQuestions)
	require.NoError(t, err)
	require.True(t, reloaded.IsDone(file, 1))
	require.False(t, reloaded.IsDone(file, 2))

	var n int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM checkpoints WHERE file=$1`, file).Scan(&n))
	require.Equal(t, 1, n)
}

func TestRunRepoStoresSummary(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewRunRepo(db)
	runID := uuid.NewString()

	require.NoError(t, repo.CreateRun(ctx, runID, models.StageAnswers))
	require.NoError(t, repo.FinishRun(ctx, models.RunSummary{RunID: runID, Stage: models.StageAnswers, Succeeded: 4}, "completed"))

	sum, status, err := repo.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, "completed", status)
	require.Equal(t, 4, sum.Succeeded)
}

func TestLLMAuditRepoInsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewLLMAuditRepo(db).RecordCall(ctx, models.LLMCall{
		CallID: uuid.NewString(), Stage: models.StageQuestions, Attempt: 1,
		ProviderName: "mock", Model: "mock-llm-v1", Status: "ok", PromptHash: "abc",
	}))
}
