package activities

import "sftgen/internal/models"

type ListDocumentsInput struct {
	DocsDir     string `json:"docs_dir"`
	FilePattern string `json:"file_pattern"`
}

type ListDocumentsOutput struct {
	Paths []string `json:"paths"`
}

type ProcessDocumentInput struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
}

type ProcessDocumentOutput struct {
	Summary models.DocumentSummary `json:"summary"`
}

type ListQuestionRowsInput struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type ListQuestionRowsOutput struct {
	Total int                  `json:"total"`
	Rows  []models.QuestionRow `json:"rows"`
}

type ProcessQuestionRowInput struct {
	RunID string             `json:"run_id"`
	Row   models.QuestionRow `json:"row"`
}

type ProcessQuestionRowOutput struct {
	State models.BatchState `json:"state"`
	Error string            `json:"error,omitempty"`
}

type WriteRunSummaryInput struct {
	Summary     models.RunSummary `json:"summary"`
	Interrupted bool              `json:"interrupted"`
}

type WriteRunSummaryOutput struct {
	Path string `json:"path"`
}
