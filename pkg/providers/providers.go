package providers

import (
	"context"
	"fmt"
)

// Client completes a single prompt against a hosted model.
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New builds the client registered under name ("openai" or "gemini").
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch name {
	case "openai", "":
		return OpenAi(ctx, opts...), nil
	case "gemini", "google":
		return Gemini(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
