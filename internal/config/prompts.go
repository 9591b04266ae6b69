package config

import (
	"fmt"
	"os"
	"strings"

	"sftgen/internal/prompt"
	"sftgen/internal/util"

	"gopkg.in/yaml.v3"
)

// Prompts holds the two stage templates from the prompt configuration file.
type Prompts struct {
	Question string `yaml:"question_prompt"`
	Answer   string `yaml:"answer_prompt"`
}

// LoadPrompts reads the YAML prompt file. Both keys must be present and non-blank, and each
// template may only reference the variables its stage binds.
func LoadPrompts(path string) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("%w: read prompt file %s: %v", util.ErrConfiguration, path, err)
	}
	return ParsePrompts(data)
}

func ParsePrompts(data []byte) (Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, fmt.Errorf("%w: parse prompt yaml: %v", util.ErrConfiguration, err)
	}
	if strings.TrimSpace(p.Question) == "" {
		return Prompts{}, fmt.Errorf("%w: question_prompt is missing", util.ErrConfiguration)
	}
	if strings.TrimSpace(p.Answer) == "" {
		return Prompts{}, fmt.Errorf("%w: answer_prompt is missing", util.ErrConfiguration)
	}
	if err := validate("question_prompt", p.Question, prompt.VarDocument, prompt.VarNumberOfQuestions); err != nil {
		return Prompts{}, err
	}
	if err := validate("answer_prompt", p.Answer, prompt.VarDocument, prompt.VarQuestion); err != nil {
		return Prompts{}, err
	}
	return p, nil
}

func validate(key, raw string, allowed ...string) error {
	tpl, err := prompt.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := tpl.RequireOnly(allowed...); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
