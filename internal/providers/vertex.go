package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/vertexai/genai"
)

// VertexProvider generates text with Gemini models on Vertex AI. The client is created on
// first use so that building a Manager never dials GCP.
type VertexProvider struct {
	projectID string
	region    string
	model     string

	once   sync.Once
	client *genai.Client
	err    error
}

func NewVertexProvider(projectID, region, model string) *VertexProvider {
	if strings.TrimSpace(region) == "" {
		region = "us-central1"
	}
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-pro"
	}
	return &VertexProvider{projectID: projectID, region: region, model: model}
}

func (v *VertexProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	name := modelOption(req.Options, v.model)
	info := ProviderInfo{Name: "vertex", Model: name, Key: v.projectID}
	if v.projectID == "" {
		return GenerateResponse{}, info, fmt.Errorf("vertex: project id is required")
	}
	v.once.Do(func() {
		v.client, v.err = genai.NewClient(ctx, v.projectID, v.region)
	})
	if v.err != nil {
		return GenerateResponse{}, info, fmt.Errorf("genai.NewClient: %w", v.err)
	}

	model := v.client.GenerativeModel(name)
	if t, ok := temperatureOption(req.Options); ok {
		model.Temperature = genai.Ptr(float32(t))
	}
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("vertex generate: %w", err)
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	if b.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("vertex returned empty candidates")
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

func (v *VertexProvider) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}
