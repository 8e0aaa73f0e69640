package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidatorOnce sync.Once
	structValidatorInst *validator.Validate
)

func structValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidatorInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidatorInst
}

// Validator reports suspicious but not invalid configuration values.
// Its findings are logged as warnings; Config.Validate decides hard failures.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("unexpected Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("unexpected OpenAI API key format (should start with sk-)")
		}
	case "gemini":
		if !strings.HasPrefix(key, "AIza") {
			return fmt.Errorf("unexpected Gemini API key format (should start with AIza)")
		}
	}

	return nil
}

// ValidateThresholds flags knob combinations that make the loop degenerate
func (v *Validator) ValidateThresholds(agent AgentConfig) []error {
	var errs []error

	if agent.FallbackScore >= agent.QualityThreshold {
		errs = append(errs, fmt.Errorf("agent.fallback_score %.2f meets agent.quality_threshold %.2f: a failed scoring call always finishes the session", agent.FallbackScore, agent.QualityThreshold))
	}
	if agent.SafetyCeiling < agent.MaxIterations {
		errs = append(errs, fmt.Errorf("agent.safety_ceiling %d is below agent.max_iterations %d: sessions stop at the ceiling", agent.SafetyCeiling, agent.MaxIterations))
	}

	return errs
}

// ValidateConfig collects every warning for cfg
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	for i, profile := range cfg.AI.Profiles {
		if profile.APIKey == "" {
			continue
		}
		if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
			errs = append(errs, fmt.Errorf("AI profile %d (%s): %w", i, profile.ID, err))
		}
	}

	if len(cfg.AI.Profiles) == 0 {
		errs = append(errs, fmt.Errorf("no AI profile configured: sessions will use the offline provider and fallback answers"))
	}

	errs = append(errs, v.ValidateThresholds(cfg.Agent)...)

	return errs
}
