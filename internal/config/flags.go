package config

import "flag"

// BindFlags registers command-line overrides for the settings shared by both stage CLIs. The
// current values (from the environment) are the defaults.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DocsDir, "docs-dir", c.DocsDir, "directory holding the source documents")
	fs.StringVar(&c.PromptFile, "prompts", c.PromptFile, "prompt configuration YAML")
	fs.StringVar(&c.LLMProviders, "provider", c.LLMProviders, "backend list, e.g. ollama or openai:key1|mock")
	fs.StringVar(&c.Model, "model", c.Model, "default model for the backend; a provider alias such as ollama:llama3.2:3b takes precedence")
	fs.IntVar(&c.MaxRetries, "max-retries", c.MaxRetries, "attempts per prompt, including the first")
	fs.BoolVar(&c.Resume, "resume", c.Resume, "skip work recorded in the checkpoint")
	fs.StringVar(&c.Store, "store", c.Store, "csv, sqlite or postgres")
	fs.StringVar(&c.DataOutRoot, "data-out", c.DataOutRoot, "directory for run summaries")
}

func (c *Config) BindQuestionFlags(fs *flag.FlagSet) {
	c.BindFlags(fs)
	fs.StringVar(&c.FilePattern, "pattern", c.FilePattern, "glob for documents inside docs-dir")
	fs.IntVar(&c.BatchSize, "batch-size", c.BatchSize, "characters per batch")
	fs.IntVar(&c.NumQuestions, "num-questions", c.NumQuestions, "questions requested per batch")
	fs.Float64Var(&c.QuestionTemperature, "temperature", c.QuestionTemperature, "sampling temperature")
	fs.StringVar(&c.QuestionsCSV, "out", c.QuestionsCSV, "questions CSV (csv store)")
	fs.StringVar(&c.CheckpointFile, "checkpoint", c.CheckpointFile, "checkpoint CSV (csv store)")
}

func (c *Config) BindAnswerFlags(fs *flag.FlagSet) {
	c.BindFlags(fs)
	fs.StringVar(&c.QuestionsCSV, "questions", c.QuestionsCSV, "questions CSV to answer (csv store)")
	fs.Float64Var(&c.AnswerTemperature, "temperature", c.AnswerTemperature, "sampling temperature")
	fs.StringVar(&c.AnswersCSV, "out", c.AnswersCSV, "answers CSV (csv store)")
	fs.StringVar(&c.AnswerCheckpointFile, "checkpoint", c.AnswerCheckpointFile, "answer checkpoint CSV (csv store)")
}
