package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

// OpenAIProvider talks to the OpenAI chat completions API or any server exposing the same
// shape (vLLM, llama.cpp server, LM Studio) when baseURL is overridden.
type OpenAIProvider struct {
	name    string
	keyName string
	apiKey  string
	url     string
	model   string
	client  *http.Client
}

func NewOpenAIProvider(keyName, model string) *OpenAIProvider {
	url := strings.TrimSpace(os.Getenv("SFTGEN_OPENAI_BASE_URL"))
	if url == "" {
		url = openAIChatURL
	}
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		name:    "openai",
		keyName: keyName,
		apiKey:  resolveKey("SFTGEN_OPENAI_KEY_", "OPENAI_API_KEY", keyName),
		url:     url,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	model := modelOption(req.Options, o.model)
	info := ProviderInfo{Name: o.name, Model: model, Key: o.keyName}
	if o.apiKey == "" && o.url == openAIChatURL {
		return GenerateResponse{}, info, fmt.Errorf("%s key missing for alias %q", o.name, o.keyName)
	}
	text, err := chatCompletion(ctx, o.client, o.url, o.apiKey, model, req)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("%s generate: %w", o.name, err)
	}
	return GenerateResponse{Text: text}, info, nil
}

func chatCompletion(ctx context.Context, client *http.Client, url, apiKey, model string, req GenerateRequest) (string, error) {
	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if t, ok := temperatureOption(req.Options); ok {
		body["temperature"] = t
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("error %d: %s", resp.StatusCode, string(raw))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func resolveKey(aliasPrefix, fallbackEnv, alias string) string {
	if alias != "" {
		if v := os.Getenv(aliasPrefix + strings.ToUpper(sanitizeEnvToken(alias))); v != "" {
			return v
		}
	}
	return os.Getenv(fallbackEnv)
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
