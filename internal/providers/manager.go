package providers

import (
	"fmt"
	"io"
	"strings"

	"sftgen/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

// Manager owns the configured backends. The pipeline uses the first one; the rest are kept so
// that a provider can be selected by name (e.g. from the API).
type Manager struct {
	llmProviders []NamedLLMProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

func (m *Manager) FirstLLMProvider() (LLMProvider, ProviderRef) {
	return m.llmProviders[0].Provider, m.llmProviders[0].Ref
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

func (m *Manager) FindLLMProviderByName(name string) (LLMProvider, ProviderRef, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, ProviderRef{}, false
	}
	for i := range m.llmProviders {
		ref := m.llmProviders[i].Ref
		if strings.ToLower(ref.Name) == target || strings.ToLower(ref.Raw) == target {
			return m.llmProviders[i].Provider, ref, true
		}
	}
	return nil, ProviderRef{}, false
}

// Close releases providers that hold network clients.
func (m *Manager) Close() error {
	var firstErr error
	for _, p := range m.llmProviders {
		if c, ok := p.Provider.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func buildProvider(ref ProviderRef, cfg config.Config) (LLMProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.NumQuestions), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias, cfg.OllamaBaseURL, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, cfg.Model), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, cfg.Model), nil
	case "vertex":
		return NewVertexProvider(cfg.VertexProject, cfg.VertexRegion, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
