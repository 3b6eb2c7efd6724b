package engine

import (
	"context"
	"fmt"
)

// Providers accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string
	OllamaModel   string

	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string
}

// New returns the Generator for opts.Provider. An empty provider means Gemini.
func New(ctx context.Context, opts Options) (Generator, error) {
	switch opts.Provider {
	case ProviderGemini, "":
		return NewGeminiEngine(ctx, opts.GeminiAPIKey, opts.GeminiModel)
	case ProviderOllama:
		if opts.OllamaModel == "" {
			return nil, fmt.Errorf("ollama model is required")
		}
		return NewOllamaEngine(opts.OllamaBaseURL, opts.OllamaModel), nil
	case ProviderOpenAI:
		if opts.OpenAIAPIKey == "" && opts.OpenAIBaseURL == "" {
			return nil, fmt.Errorf("openai API key is required")
		}
		return NewOpenAIEngine(opts.OpenAIAPIKey, opts.OpenAIBaseURL, opts.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown engine provider %q", opts.Provider)
	}
}
