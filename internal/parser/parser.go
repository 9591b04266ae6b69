// Package parser extracts records from raw model output. Model output is untrusted: both
// parsers match patterns and never assume the response is well formed.
package parser

import (
	"fmt"

	"sftgen/internal/models"
)

// Parser turns one raw backend response into records for its stage.
type Parser interface {
	Stage() models.Stage
	Parse(raw string) ([]string, error)
}

func ForStage(stage models.Stage) (Parser, error) {
	switch stage {
	case models.StageQuestions:
		return QuestionParser{}, nil
	case models.StageAnswers:
		return AnswerParser{}, nil
	default:
		return nil, fmt.Errorf("no parser for stage %q", stage)
	}
}
