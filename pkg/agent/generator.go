package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// GeneratorConfig holds the per-call knobs applied to every prompt
type GeneratorConfig struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	Timeout      time.Duration
}

// Generator adapts an LLMProvider to the single-prompt capability the planner needs.
// Every failure, including a blank response or a timeout, wraps ErrCapability.
type Generator struct {
	provider LLMProvider
	cfg      GeneratorConfig
}

// NewGenerator creates a generator. An empty model falls back to the provider default.
func NewGenerator(provider LLMProvider, cfg GeneratorConfig) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(provider.Provider())
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Generator{provider: provider, cfg: cfg}
}

// Provider returns the name of the wrapped provider
func (g *Generator) Provider() string {
	return g.provider.Provider()
}

// Generate sends prompt as a single user message
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.provider.Call(ctx, LLMRequest{
		Model:        g.cfg.Model,
		Messages:     []AgentMessage{{Role: "user", Content: prompt}},
		Temperature:  g.cfg.Temperature,
		MaxTokens:    g.cfg.MaxTokens,
		SystemPrompt: g.cfg.SystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCapability, g.provider.Provider(), err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: %s: empty response", ErrCapability, g.provider.Provider())
	}
	return resp.Content, nil
}
