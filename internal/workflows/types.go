package workflows

import "sftgen/internal/models"

type QuestionStageInput struct {
	RunID       string `json:"run_id"`
	DocsDir     string `json:"docs_dir,omitempty"`
	FilePattern string `json:"file_pattern,omitempty"`
}

type AnswerStageInput struct {
	RunID    string `json:"run_id"`
	PageSize int    `json:"page_size,omitempty"`
}

// StageProgress is what the progress query returns while a stage workflow runs.
type StageProgress struct {
	RunID     string            `json:"run_id"`
	Stage     models.Stage      `json:"stage"`
	Status    string            `json:"status"`
	Total     int               `json:"total"`
	Done      int               `json:"done"`
	Current   string            `json:"current,omitempty"`
	Succeeded int               `json:"succeeded"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Invalid   int               `json:"invalid"`
	PerFile   map[string]string `json:"per_file,omitempty"`
}
