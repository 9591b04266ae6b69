package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GroqProvider uses Groq's OpenAI-compatible chat endpoint.
type GroqProvider struct {
	keyName string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGroqProvider(keyName, model string) *GroqProvider {
	if strings.TrimSpace(model) == "" {
		model = "llama-3.1-8b-instant"
	}
	return &GroqProvider{
		keyName: keyName,
		apiKey:  resolveKey("SFTGEN_GROQ_KEY_", "GROQ_API_KEY", keyName),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	model := modelOption(req.Options, g.model)
	info := ProviderInfo{Name: "groq", Key: g.keyName, Model: model}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("groq key missing for alias %q", g.keyName)
	}
	text, err := chatCompletion(ctx, g.client, "https://api.groq.com/openai/v1/chat/completions", g.apiKey, model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("groq generate: %w", err)
	}
	return GenerateResponse{Text: text}, info, nil
}
