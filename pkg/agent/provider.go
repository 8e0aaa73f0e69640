package agent

import (
	"context"
	"fmt"
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []AgentMessage
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content string
	Usage   *TokenUsage
}

// ProviderCreator creates LLM providers from auth profiles.
type ProviderCreator interface {
	NewProvider(profile AuthProfile) (LLMProvider, error)
}

// ProviderFactory creates LLM providers
type ProviderFactory struct{}

// NewProvider creates a new LLM provider based on auth profile
func (f *ProviderFactory) NewProvider(profile AuthProfile) (LLMProvider, error) {
	switch profile.Provider {
	case ProviderAnthropic:
		return NewAnthropicProvider(profile.APIKey), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(profile.APIKey, profile.BaseURL), nil
	case ProviderGemini:
		return NewGeminiProvider(context.Background(), profile.APIKey)
	case ProviderOpenAICompatible:
		return NewCompatibleProvider(profile.APIKey, profile.BaseURL, profile.Model)
	case ProviderOffline, "":
		return NewOfflineProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, profile.Provider)
	}
}
