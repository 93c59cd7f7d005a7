package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/snow-ghost/patrefine/pkg/registry"
	"github.com/snow-ghost/patrefine/pkg/tokens"
)

// DefaultProviderFactory builds providers from model configuration.
type DefaultProviderFactory struct {
	counter *tokens.Counter
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(counter *tokens.Counter) *DefaultProviderFactory {
	if counter == nil {
		counter = tokens.NewCounter()
	}
	return &DefaultProviderFactory{counter: counter}
}

// CreateProviderFromConfig creates a provider instance from model configuration.
// vllm, lmstudio and openrouter speak the OpenAI wire format.
func (f *DefaultProviderFactory) CreateProviderFromConfig(ctx context.Context, mc registry.ModelConfig) (Provider, error) {
	apiKey := ""
	if mc.APIKeyEnv != "" {
		apiKey = os.Getenv(mc.APIKeyEnv)
	}

	switch mc.Provider {
	case "openai", "openrouter":
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable %s", mc.APIKeyEnv)
		}
		return NewOpenAIProvider(mc.BaseURL, apiKey, f.counter), nil
	case "vllm", "lmstudio":
		if mc.BaseURL == "" {
			return nil, fmt.Errorf("%s provider requires base_url", mc.Provider)
		}
		return NewOpenAIProvider(mc.BaseURL, apiKey, f.counter), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable %s", mc.APIKeyEnv)
		}
		return NewAnthropicProvider(mc.BaseURL, apiKey, f.counter), nil
	case "ollama":
		return NewOllamaProvider(mc.BaseURL, f.counter), nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("API key not found in environment variable %s", mc.APIKeyEnv)
		}
		return NewGeminiProvider(ctx, apiKey, f.counter)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", mc.Provider)
	}
}

// GetSupportedProviders returns a list of supported provider types
func (f *DefaultProviderFactory) GetSupportedProviders() []string {
	return []string{
		"openai",
		"anthropic",
		"ollama",
		"gemini",
		"vllm",
		"lmstudio",
		"openrouter",
	}
}
