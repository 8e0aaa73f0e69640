package agent

import (
	"errors"
	"time"

	"github.com/harun/deepagent/pkg/planner"
)

var (
	// ErrCapability wraps every failure of the text-generation capability
	ErrCapability = errors.New("generation capability failed")

	// ErrEmptyQuery is returned when a query is blank after trimming
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrUnsupportedProvider is returned by the factory for unknown provider names
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrOffline is returned by the offline provider on every call
	ErrOffline = errors.New("no generation provider configured")

	// ErrAdmission is returned when a session could not get a run slot before its context ended
	ErrAdmission = errors.New("session admission failed")
)

const (
	ProviderAnthropic        = "anthropic"
	ProviderOpenAI           = "openai"
	ProviderGemini           = "gemini"
	ProviderOpenAICompatible = "openai-compatible"
	ProviderOffline          = "offline"
)

// AuthProfile represents the credentials and endpoint for one LLM provider
type AuthProfile struct {
	ID       string `json:"id"`
	Provider string `json:"provider"` // "anthropic", "openai", "gemini", "openai-compatible", "offline"
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
}

// AgentMessage represents a message sent to a provider
type AgentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the outward view of a finished session
type Response struct {
	SessionID      string                  `json:"sessionId" yaml:"sessionId"`
	FinalAnswer    string                  `json:"finalAnswer" yaml:"finalAnswer"`
	ExecutionTrace []planner.ExecutionStep `json:"executionTrace" yaml:"executionTrace"`
	Iterations     int                     `json:"iterations" yaml:"iterations"`
	QualityScore   float64                 `json:"qualityScore" yaml:"qualityScore"`
	PlanSteps      []string                `json:"planSteps" yaml:"planSteps"`
	StopReason     planner.StopReason      `json:"stopReason" yaml:"stopReason"`
	DurationMs     int64                   `json:"durationMs" yaml:"durationMs"`
}

// NewResponse maps a final session state to a Response
func NewResponse(state planner.State, duration time.Duration) *Response {
	final := state.Clone()
	if final.History == nil {
		final.History = []planner.ExecutionStep{}
	}
	if final.Plan == nil {
		final.Plan = []string{}
	}
	return &Response{
		SessionID:      final.SessionID,
		FinalAnswer:    final.Synthesis,
		ExecutionTrace: final.History,
		Iterations:     final.IterationCount,
		QualityScore:   final.QualityScore,
		PlanSteps:      final.Plan,
		StopReason:     final.StopReason,
		DurationMs:     duration.Milliseconds(),
	}
}

// DefaultModel returns the model used when a profile does not name one
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-20241022"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOpenAICompatible:
		return "llama3.1"
	default:
		return ""
	}
}
