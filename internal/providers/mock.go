package providers

import (
	"context"
	"fmt"
	"strings"

	"sftgen/internal/util"
)

// MockProvider returns deterministic, well-formed responses so a pipeline can be dry-run
// without a model server. Operation selects the response shape.
type MockProvider struct {
	questions int
}

func NewMockProvider(questions int) *MockProvider {
	if questions <= 0 {
		questions = 5
	}
	return &MockProvider{questions: questions}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	digest := util.SHA256Hex([]byte(req.Prompt))[:8]
	switch strings.ToLower(req.Operation) {
	case "answers":
		return GenerateResponse{Text: "<answer>\nMock answer " + digest + ".\n</endanswer>"}, info, nil
	default:
		var b strings.Builder
		b.WriteString("{\n")
		for i := 1; i <= m.questions; i++ {
			sep := ","
			if i == m.questions {
				sep = ""
			}
			fmt.Fprintf(&b, "  \"Question %d\": \"Mock question %d about %s?\"%s\n", i, i, digest, sep)
		}
		b.WriteString("}")
		return GenerateResponse{Text: b.String()}, info, nil
	}
}
