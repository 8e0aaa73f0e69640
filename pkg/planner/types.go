package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownAction signals a state whose NextAction is outside the known set.
	// It is a defect in state construction, never a runtime condition.
	ErrUnknownAction = errors.New("unknown next action")

	// ErrStateInvariant signals that plan, cursor and history fell out of lock-step.
	ErrStateInvariant = errors.New("session state invariant violated")
)

// Action is the tag that drives control flow between phases
type Action int

const (
	ActionPlan Action = iota + 1
	ActionExecute
	ActionEvaluate
	ActionFinish
)

var actionNames = map[Action]string{
	ActionPlan:     "plan",
	ActionExecute:  "execute",
	ActionEvaluate: "evaluate",
	ActionFinish:   "finish",
}

// String returns the wire name of the action
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether a is one of the four known actions
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// ParseAction converts a wire name into an Action
func ParseAction(s string) (Action, error) {
	for action, name := range actionNames {
		if name == s {
			return action, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// MarshalText implements encoding.TextMarshaler
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// StopReason records why a session finished
type StopReason string

const (
	StopReasonNone             StopReason = ""
	StopReasonQualityThreshold StopReason = "quality_threshold"
	StopReasonMaxIterations    StopReason = "max_iterations"
	StopReasonSafetyCeiling    StopReason = "safety_ceiling"
)

// ExecutionStep is one completed plan step. Entries are never modified once appended.
type ExecutionStep struct {
	StepNumber  int       `json:"stepNumber" yaml:"stepNumber"`
	Description string    `json:"description" yaml:"description"`
	Result      string    `json:"result" yaml:"result"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// State is the session record threaded through the phases.
// Phase handlers treat it as a value: they Clone before changing anything.
type State struct {
	SessionID      string          `json:"sessionId" yaml:"sessionId"`
	Query          string          `json:"query" yaml:"query"`
	Plan           []string        `json:"plan" yaml:"plan"`
	CurrentStep    int             `json:"currentStepIndex" yaml:"currentStepIndex"`
	History        []ExecutionStep `json:"history" yaml:"history"`
	Synthesis      string          `json:"synthesis" yaml:"synthesis"`
	QualityScore   float64         `json:"qualityScore" yaml:"qualityScore"`
	IterationCount int             `json:"iterationCount" yaml:"iterationCount"`
	NextAction     Action          `json:"nextAction" yaml:"nextAction"`
	StopReason     StopReason      `json:"stopReason,omitempty" yaml:"stopReason,omitempty"`
}

// NewState creates the initial state for a query with a fresh session ID
func NewState(query string) State {
	return State{
		SessionID:  uuid.New().String(),
		Query:      query,
		Plan:       []string{},
		History:    []ExecutionStep{},
		NextAction: ActionPlan,
	}
}

// Clone returns a deep copy so that later phases cannot alias earlier snapshots
func (s State) Clone() State {
	out := s
	if s.Plan != nil {
		out.Plan = make([]string, len(s.Plan))
		copy(out.Plan, s.Plan)
	}
	if s.History != nil {
		out.History = make([]ExecutionStep, len(s.History))
		copy(out.History, s.History)
	}
	return out
}

// CurrentStepDescription returns the plan step the cursor points at
func (s State) CurrentStepDescription() (string, bool) {
	if s.CurrentStep < 0 || s.CurrentStep >= len(s.Plan) {
		return "", false
	}
	return s.Plan[s.CurrentStep], true
}

// Settings holds the read-only knobs consumed by the loop
type Settings struct {
	MaxIterations    int     `json:"maxIterations"`
	QualityThreshold float64 `json:"qualityThreshold"`
	FallbackScore    float64 `json:"fallbackScore"`
	SafetyCeiling    int     `json:"safetyCeiling"`
}

const (
	DefaultMaxIterations    = 10
	DefaultQualityThreshold = 0.75
	DefaultFallbackScore    = 0.75
	DefaultSafetyCeiling    = 10
)

// DefaultSettings returns the stock loop settings
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:    DefaultMaxIterations,
		QualityThreshold: DefaultQualityThreshold,
		FallbackScore:    DefaultFallbackScore,
		SafetyCeiling:    DefaultSafetyCeiling,
	}
}

// Normalized returns the settings a session actually runs with.
// A zero Settings means DefaultSettings. Otherwise zero iteration knobs take
// their defaults, the score knobs are clamped to [0, 1] and an explicit zero
// threshold accepts any answer.
func (s Settings) Normalized() Settings {
	if s == (Settings{}) {
		return DefaultSettings()
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.SafetyCeiling <= 0 {
		s.SafetyCeiling = DefaultSafetyCeiling
	}
	s.QualityThreshold = clampScore(s.QualityThreshold)
	s.FallbackScore = clampScore(s.FallbackScore)
	return s
}
