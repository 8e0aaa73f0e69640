package daemon

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/harun/deepagent/internal/config"
	"github.com/harun/deepagent/pkg/agent"
	"github.com/harun/deepagent/pkg/planner"
)

// SettingsFromConfig maps the agent section onto loop settings
func SettingsFromConfig(cfg *config.Config) planner.Settings {
	return planner.Settings{
		MaxIterations:    cfg.Agent.MaxIterations,
		QualityThreshold: cfg.Agent.QualityThreshold,
		FallbackScore:    cfg.Agent.FallbackScore,
		SafetyCeiling:    cfg.Agent.SafetyCeiling,
	}
}

// BuildRunner creates the provider for the active AI profile and wraps it in a runner.
// Without a profile the offline provider is used and every session runs on fallbacks.
func BuildRunner(cfg *config.Config, log zerolog.Logger) (*agent.Runner, error) {
	auth := agent.AuthProfile{Provider: agent.ProviderOffline}
	profile, ok := cfg.ActiveProfile()
	if ok {
		auth = agent.AuthProfile{
			ID:       profile.ID,
			Provider: profile.Provider,
			APIKey:   profile.APIKey,
			BaseURL:  profile.BaseURL,
			Model:    profile.Model,
		}
	} else {
		log.Warn().Msg("No AI profile configured, sessions will use fallback answers")
	}

	var factory agent.ProviderCreator = &agent.ProviderFactory{}
	provider, err := factory.NewProvider(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", auth.Provider, err)
	}

	gen := agent.NewGenerator(provider, agent.GeneratorConfig{
		Model:        auth.Model,
		Temperature:  cfg.AI.Temperature,
		MaxTokens:    cfg.AI.MaxTokens,
		SystemPrompt: cfg.AI.SystemPrompt,
		Timeout:      cfg.Agent.GenerationTimeout,
	})

	log.Info().
		Str("profile", auth.ID).
		Str("provider", provider.Provider()).
		Msg("Generation provider ready")

	return agent.NewRunner(agent.RunnerConfig{
		Generator:             gen,
		Provider:              provider.Provider(),
		Settings:              SettingsFromConfig(cfg),
		MaxConcurrentSessions: cfg.Agent.MaxConcurrentSessions,
		Logger:                log,
	})
}
