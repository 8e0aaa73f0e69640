package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		provider string
		key      string
		wantErr  bool
	}{
		{"anthropic", "sk-ant-abc", false},
		{"anthropic", "sk-abc", true},
		{"openai", "sk-abc", false},
		{"openai", "pk-abc", true},
		{"gemini", "AIzaSyabc", false},
		{"gemini", "sk-abc", true},
		{"openai-compatible", "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.key, func(t *testing.T) {
			err := v.ValidateAPIKey(tt.key, tt.provider)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateThresholds(t *testing.T) {
	v := NewValidator()

	t.Run("default coupling is flagged", func(t *testing.T) {
		errs := v.ValidateThresholds(DefaultConfig().Agent)
		assert.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "always finishes")
	})

	t.Run("independent knobs pass", func(t *testing.T) {
		agent := DefaultConfig().Agent
		agent.FallbackScore = 0.5
		assert.Empty(t, v.ValidateThresholds(agent))
	})

	t.Run("ceiling below max iterations", func(t *testing.T) {
		agent := DefaultConfig().Agent
		agent.FallbackScore = 0.5
		agent.SafetyCeiling = 3
		errs := v.ValidateThresholds(agent)
		assert.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "safety_ceiling")
	})
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.FallbackScore = 0.5
	cfg.AI.Profiles = []AIProfile{{ID: "claude", Provider: "anthropic", APIKey: "wrong-prefix"}}

	errs := NewValidator().ValidateConfig(cfg)

	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "claude")
}

func TestValidateConfigWithoutProfiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Agent.FallbackScore = 0.5

	errs := NewValidator().ValidateConfig(cfg)

	assert.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "offline provider")
}
