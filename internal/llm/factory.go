package llm

import (
	"context"
	"fmt"
)

// Config selects and authenticates a provider.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewProvider builds the provider named in cfg. An empty API key yields the
// disabled provider rather than an error.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return Disabled{}, nil
	}
	switch cfg.Provider {
	case "gemini", "google":
		model := cfg.Model
		if model == "" {
			model = "gemini-2.0-flash"
		}
		return NewGeminiProvider(ctx, cfg.APIKey, model)
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return NewOpenAIProvider(cfg.APIKey, model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}
}
