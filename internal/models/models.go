package models

import "time"

type Stage string

const (
	StageQuestions Stage = "questions"
	StageAnswers   Stage = "answers"
)

// Document is one input file; Name (the base filename) is its identity.
type Document struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Text string `json:"-"`
}

// Batch is a fixed-size slice of a document. (File, Number) identifies it; Number starts at 1.
type Batch struct {
	File   string `json:"file"`
	Number int    `json:"batch_number"`
	Text   string `json:"-"`
}

type QuestionRecord struct {
	File        string `json:"file"`
	BatchNumber int    `json:"batch_number"`
	Question    string `json:"question"`
}

type AnswerRecord struct {
	File        string `json:"file"`
	BatchNumber string `json:"batch_number"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
}

// QuestionRow is one data row of the questions CSV consumed by the answer stage.
// Row is the 1-based data row index; BatchNumber is carried through verbatim.
type QuestionRow struct {
	Row         int    `json:"row"`
	File        string `json:"file"`
	BatchNumber string `json:"batch_number"`
	Question    string `json:"question"`
}

type CheckpointEntry struct {
	File        string `json:"file"`
	BatchNumber int    `json:"batch_number"`
}

type BatchState string

const (
	BatchPending    BatchState = "pending"
	BatchSkipped    BatchState = "skipped"
	BatchProcessing BatchState = "processing"
	BatchSucceeded  BatchState = "succeeded"
	BatchFailed     BatchState = "failed"
	// BatchInvalid marks an answer-stage row that lacks a file or question.
	BatchInvalid BatchState = "invalid"
)

// DocumentSummary counts terminal batch states for one document (or one question row set).
type DocumentSummary struct {
	File      string `json:"file"`
	Status    string `json:"status"`
	Batches   int    `json:"batches"`
	Skipped   int    `json:"skipped"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Records   int    `json:"records"`
	Error     string `json:"error,omitempty"`
}

func (d *DocumentSummary) Add(state BatchState, records int) {
	d.Batches++
	switch state {
	case BatchSkipped:
		d.Skipped++
	case BatchSucceeded:
		d.Succeeded++
		d.Records += records
	case BatchFailed:
		d.Failed++
	}
}

// Finish derives Status from the counts: completed when nothing failed, failed when everything did.
func (d *DocumentSummary) Finish() {
	switch {
	case d.Failed == 0:
		d.Status = "completed"
	case d.Failed == d.Batches:
		d.Status = "failed"
	default:
		d.Status = "partial"
	}
}

type RunSummary struct {
	RunID      string            `json:"run_id"`
	Stage      Stage             `json:"stage"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Documents  int               `json:"documents"`
	Unreadable int               `json:"unreadable"`
	Invalid    int               `json:"invalid,omitempty"`
	Skipped    int               `json:"skipped"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Records    int               `json:"records"`
	PerFile    []DocumentSummary `json:"per_file"`
}

// Merge folds a per-document summary into the run totals.
func (r *RunSummary) Merge(d DocumentSummary) {
	r.Documents++
	if d.Error != "" {
		r.Unreadable++
	}
	r.Skipped += d.Skipped
	r.Succeeded += d.Succeeded
	r.Failed += d.Failed
	r.Records += d.Records
	r.PerFile = append(r.PerFile, d)
}

// LLMCall is the audit row for one backend attempt.
type LLMCall struct {
	CallID       string `json:"call_id"`
	RunID        string `json:"run_id,omitempty"`
	Stage        Stage  `json:"stage"`
	File         string `json:"file,omitempty"`
	Unit         int    `json:"unit,omitempty"`
	Attempt      int    `json:"attempt"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type,omitempty"`
	LatencyMS    int64  `json:"latency_ms"`
	PromptHash   string `json:"prompt_hash"`
}
