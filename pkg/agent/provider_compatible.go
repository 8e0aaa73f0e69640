package agent

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	llmopenai "github.com/tmc/langchaingo/llms/openai"
)

// CompatibleProvider talks to any OpenAI-compatible server (Ollama, LM Studio, vLLM)
type CompatibleProvider struct {
	llm llms.Model
}

// NewCompatibleProvider creates a provider for baseURL. Local servers often
// need no API key, so apiKey may be empty.
func NewCompatibleProvider(apiKey, baseURL, model string) (*CompatibleProvider, error) {
	if model == "" {
		model = DefaultModel(ProviderOpenAICompatible)
	}
	if apiKey == "" {
		// langchaingo refuses to build a client without a token
		apiKey = "not-needed"
	}

	opts := []llmopenai.Option{
		llmopenai.WithModel(model),
		llmopenai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, llmopenai.WithBaseURL(baseURL))
	}

	llm, err := llmopenai.New(opts...)
	if err != nil {
		return nil, err
	}
	return &CompatibleProvider{llm: llm}, nil
}

// Provider returns the provider name
func (p *CompatibleProvider) Provider() string {
	return ProviderOpenAICompatible
}

// Call sends the conversation through langchaingo
func (p *CompatibleProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	messages := make([]llms.MessageContent, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, request.SystemPrompt))
	}
	for _, msg := range request.Messages {
		switch msg.Role {
		case "user":
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case "assistant":
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		}
	}

	opts := []llms.CallOption{}
	if request.Model != "" {
		opts = append(opts, llms.WithModel(request.Model))
	}
	if request.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(request.Temperature))
	}
	if request.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(request.MaxTokens))
	}

	resp, err := p.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return &LLMResponse{}, nil
	}
	return &LLMResponse{Content: resp.Choices[0].Content}, nil
}
