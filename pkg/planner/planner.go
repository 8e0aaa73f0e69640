package planner

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
)

var (
	errNoGenerator    = errors.New("no generator configured")
	errBlankSynthesis = errors.New("blank synthesis")
)

// Generator is the external text-generation capability.
// A failed call is never fatal: each phase falls back to a deterministic value.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f(ctx, prompt)
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func generate(ctx context.Context, gen Generator, prompt string) (string, error) {
	if gen == nil {
		return "", errNoGenerator
	}
	return gen.Generate(ctx, prompt)
}

// Planner turns the query into an ordered list of step descriptions
type Planner struct {
	gen    Generator
	logger zerolog.Logger
}

// NewPlanner creates a new planner instance
func NewPlanner(gen Generator, logger zerolog.Logger) *Planner {
	return &Planner{
		gen:    gen,
		logger: logger.With().Str("component", "planner").Logger(),
	}
}

// Run starts a new planning cycle: the plan is replaced, the cursor and history
// are reset and the iteration counter advances by one.
func (p *Planner) Run(ctx context.Context, state State) (State, error) {
	logger := tracing.LoggerFromContext(ctx, p.logger)

	next := state.Clone()
	next.Plan = p.createPlan(ctx, state)
	next.CurrentStep = 0
	next.History = []ExecutionStep{}
	next.IterationCount++
	next.NextAction = ActionExecute
	next.StopReason = StopReasonNone

	logger.Info().
		Int("iteration", next.IterationCount).
		Int("steps", len(next.Plan)).
		Msg("Plan created")

	return next, nil
}

func (p *Planner) createPlan(ctx context.Context, state State) []string {
	logger := tracing.LoggerFromContext(ctx, p.logger)

	data := planPromptData{Query: state.Query}
	if state.IterationCount > 0 && strings.TrimSpace(state.Synthesis) != "" {
		data.Feedback = state.Synthesis
	}

	prompt, err := render(tmplPlan, data)
	if err == nil {
		var response string
		response, err = generate(ctx, p.gen, prompt)
		if err == nil {
			var steps []string
			steps, err = ParsePlan(response)
			if err == nil {
				return steps
			}
		}
	}

	observability.RecordGenerationFailure(ActionPlan.String())
	logger.Warn().Err(err).Msg("Planning failed, using fallback plan")
	return FallbackPlan(state.Query)
}
