package parser

import (
	"log"
	"regexp"
	"strings"

	"sftgen/internal/models"
	"sftgen/internal/util"
)

var questionPattern = regexp.MustCompile(`"Question \d+":\s*"([^"]+)"`)

// QuestionParser collects every `"Question <n>": "<text>"` pair in order of appearance.
// No match is a valid, empty result.
type QuestionParser struct{}

func (QuestionParser) Stage() models.Stage { return models.StageQuestions }

func (QuestionParser) Parse(raw string) ([]string, error) {
	matches := questionPattern.FindAllStringSubmatch(strings.TrimSpace(raw), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	if len(out) == 0 {
		log.Printf("parser: no questions extracted from response")
		return out, nil
	}
	for _, q := range out {
		log.Printf("parser: extracted question=%q", util.DisplaySnippet(q, 160))
	}
	return out, nil
}
