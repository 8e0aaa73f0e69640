package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config represents the main deepagent configuration
type Config struct {
	// Planning loop
	Agent AgentConfig `json:"agent" mapstructure:"agent" yaml:"agent"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai" yaml:"ai"`

	// HTTP gateway
	Server ServerConfig `json:"server" mapstructure:"server" yaml:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging" yaml:"logging"`

	// OpenTelemetry
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing" yaml:"tracing"`
}

// AgentConfig holds the planning loop knobs
type AgentConfig struct {
	MaxIterations         int           `json:"max_iterations" mapstructure:"max_iterations" yaml:"max_iterations" validate:"gte=1,lte=100"`
	QualityThreshold      float64       `json:"quality_threshold" mapstructure:"quality_threshold" yaml:"quality_threshold" validate:"gte=0,lte=1"`
	FallbackScore         float64       `json:"fallback_score" mapstructure:"fallback_score" yaml:"fallback_score" validate:"gte=0,lte=1"`
	SafetyCeiling         int           `json:"safety_ceiling" mapstructure:"safety_ceiling" yaml:"safety_ceiling" validate:"gte=1,lte=100"`
	GenerationTimeout     time.Duration `json:"generation_timeout" mapstructure:"generation_timeout" yaml:"generation_timeout" validate:"gte=0"`
	MaxConcurrentSessions int           `json:"max_concurrent_sessions" mapstructure:"max_concurrent_sessions" yaml:"max_concurrent_sessions" validate:"gte=1,lte=1024"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	// Active selects a profile by ID; empty means the first profile
	Active       string      `json:"active" mapstructure:"active" yaml:"active"`
	Profiles     []AIProfile `json:"profiles" mapstructure:"profiles" yaml:"profiles" validate:"dive"`
	Temperature  float64     `json:"temperature" mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int         `json:"max_tokens" mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0,lte=200000"`
	SystemPrompt string      `json:"system_prompt" mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id" yaml:"id" validate:"required"`
	Provider string `json:"provider" mapstructure:"provider" yaml:"provider" validate:"required,oneof=anthropic openai gemini openai-compatible offline"`
	APIKey   string `json:"api_key" mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url" mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model    string `json:"model" mapstructure:"model" yaml:"model,omitempty"`
}

// ServerConfig holds gateway server configuration
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host" yaml:"host"`
	Port            int           `json:"port" mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	// RateLimit is requests per second per client IP; 0 disables limiting
	RateLimit      float64  `json:"rate_limit" mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	RateBurst      int      `json:"rate_burst" mapstructure:"rate_burst" yaml:"rate_burst" validate:"gte=0"`
	AllowedOrigins []string `json:"allowed_origins" mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File      string `json:"file" mapstructure:"file" yaml:"file,omitempty"`
	Console   bool   `json:"console" mapstructure:"console" yaml:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty" yaml:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction" yaml:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file" yaml:"audit_file,omitempty"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio" yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations:         10,
			QualityThreshold:      0.75,
			FallbackScore:         0.75,
			SafetyCeiling:         10,
			GenerationTimeout:     0,
			MaxConcurrentSessions: 8,
		},
		AI: AIConfig{
			Profiles:    []AIProfile{},
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			RateLimit:       2,
			RateBurst:       5,
			AllowedOrigins:  []string{},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "deepagent",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with API keys masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// Redacted returns a copy with every API key masked
func (c *Config) Redacted() *Config {
	out := *c
	out.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		p.APIKey = MaskSecret(p.APIKey)
		out.AI.Profiles[i] = p
	}
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return &out
}

// MaskSecret keeps the first four characters of a secret
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", 8)
}

// ActiveProfile returns the profile selected by AI.Active, or the first one.
// ok is false when no profile is configured.
func (c *Config) ActiveProfile() (profile AIProfile, ok bool) {
	if len(c.AI.Profiles) == 0 {
		return AIProfile{}, false
	}
	if c.AI.Active == "" {
		return c.AI.Profiles[0], true
	}
	for _, p := range c.AI.Profiles {
		if p.ID == c.AI.Active {
			return p, true
		}
	}
	return AIProfile{}, false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var errs []error

	seen := make(map[string]bool, len(c.AI.Profiles))
	for _, profile := range c.AI.Profiles {
		if seen[profile.ID] {
			errs = append(errs, fmt.Errorf("AI profile %s: duplicate ID", profile.ID))
		}
		seen[profile.ID] = true

		switch profile.Provider {
		case "anthropic", "openai", "gemini":
			if profile.APIKey == "" {
				errs = append(errs, fmt.Errorf("AI profile %s: api_key is required for provider %s", profile.ID, profile.Provider))
			}
		case "openai-compatible":
			if profile.BaseURL == "" {
				errs = append(errs, fmt.Errorf("AI profile %s: base_url is required for provider %s", profile.ID, profile.Provider))
			}
		}
	}

	if c.AI.Active != "" && !seen[c.AI.Active] {
		errs = append(errs, fmt.Errorf("active AI profile %q not found", c.AI.Active))
	}

	return errors.Join(errs...)
}
