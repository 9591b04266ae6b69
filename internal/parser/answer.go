package parser

import (
	"regexp"

	"sftgen/internal/models"
	"sftgen/internal/util"
)

// The closing marker is spelled differently from the opening one. Prompts in the wild ask the
// model for exactly this pair, so it is matched literally.
const (
	AnswerOpenTag  = "<answer>"
	AnswerCloseTag = "</endanswer>"
)

var answerPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(AnswerOpenTag) + `\s*(.*?)\s*` + regexp.QuoteMeta(AnswerCloseTag))

// AnswerParser returns the text between the first AnswerOpenTag/AnswerCloseTag pair.
// A response without the pair fails with util.ErrMissingAnswerTag.
type AnswerParser struct{}

func (AnswerParser) Stage() models.Stage { return models.StageAnswers }

func (AnswerParser) Parse(raw string) ([]string, error) {
	m := answerPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, util.ErrMissingAnswerTag
	}
	return []string{m[1]}, nil
}
