package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// Option keys understood by every provider. Unknown keys are ignored.
const (
	OptTemperature = "temperature"
	OptModel       = "model"
)

type GenerateRequest struct {
	Operation string         `json:"operation"`
	Prompt    string         `json:"prompt"`
	Options   map[string]any `json:"options,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

// LLMProvider is the backend boundary: one prompt in, raw text out. Implementations must
// honour ctx cancellation and return the raw text untouched.
type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

func temperatureOption(opts map[string]any) (float64, bool) {
	switch v := opts[OptTemperature].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func modelOption(opts map[string]any, fallback string) string {
	if v, ok := opts[OptModel].(string); ok && v != "" {
		return v
	}
	return fallback
}
