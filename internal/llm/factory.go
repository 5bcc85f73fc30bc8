package llm

import (
	"fmt"
	"os"
	"time"
)

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "openai", "anthropic", "openrouter", "ollama".
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is not set")
		}
		return NewOpenAICompatibleProvider("openrouter", apiKey, openRouterBaseURL, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// Options configures the wrappers applied by Wrap.
type Options struct {
	Timeout           time.Duration
	RequestsPerMinute int
}

// Wrap applies the per-call timeout and rate limit around p. Zero values
// leave the corresponding wrapper out.
func Wrap(p Provider, opts Options) Provider {
	if opts.Timeout > 0 {
		p = NewTimeoutProvider(p, opts.Timeout)
	}
	if opts.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, opts.RequestsPerMinute)
	}
	return p
}
