package providers

import (
	"context"
	"fmt"
	"os"
)

// Client completes a single prompt with the given model
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

// New returns the client for the named provider ("openai" or "gemini").
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch name {
	case "openai", "":
		return OpenAi(ctx, opts...), nil
	case "gemini":
		return Gemini(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func applyOptions(opts []ProviderOption, keyEnv string, baseURLEnv string) ProviderParams {
	params := ProviderParams{}
	for _, opt := range opts {
		opt(&params)
	}
	if params.APIKey == "" {
		params.APIKey = os.Getenv(keyEnv)
	}
	if params.BaseURL == "" && baseURLEnv != "" {
		params.BaseURL = os.Getenv(baseURLEnv)
	}
	return params
}
