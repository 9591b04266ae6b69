package pipeline

import (
	"context"

	"sftgen/internal/models"
)

// CheckpointStore records completed units of work. IsDone answers from a snapshot loaded when the
// store was opened plus any MarkDone calls since. MarkDone is durable before it returns and a
// repeated MarkDone for the same key is a no-op.
type CheckpointStore interface {
	IsDone(file string, unit int) bool
	MarkDone(ctx context.Context, file string, unit int) error
}

// QuestionSink appends question records. Appends are durable and never deduplicated.
type QuestionSink interface {
	AppendQuestions(ctx context.Context, file string, batch int, questions []string) error
}

type AnswerSink interface {
	AppendAnswer(ctx context.Context, rec models.AnswerRecord) error
}

// QuestionSource feeds the answer stage.
type QuestionSource interface {
	CountQuestions(ctx context.Context) (int, error)
	ForEachQuestion(ctx context.Context, fn func(models.QuestionRow) error) error
}

// MemoryCheckpoint is a non-durable CheckpointStore, used when resume is disabled for the
// answer stage and in tests.
type MemoryCheckpoint struct {
	done map[checkpointKey]struct{}
}

type checkpointKey struct {
	file string
	unit int
}

func NewMemoryCheckpoint() *MemoryCheckpoint {
	return &MemoryCheckpoint{done: map[checkpointKey]struct{}{}}
}

func (m *MemoryCheckpoint) IsDone(file string, unit int) bool {
	_, ok := m.done[checkpointKey{file, unit}]
	return ok
}

func (m *MemoryCheckpoint) MarkDone(ctx context.Context, file string, unit int) error {
	_ = ctx
	m.done[checkpointKey{file, unit}] = struct{}{}
	return nil
}

func (m *MemoryCheckpoint) Len() int { return len(m.done) }
