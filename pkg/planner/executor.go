package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
)

// Executor runs the plan one step at a time
type Executor struct {
	gen    Generator
	logger zerolog.Logger
	now    func() time.Time
}

// NewExecutor creates a new executor
func NewExecutor(gen Generator, logger zerolog.Logger) *Executor {
	return &Executor{
		gen:    gen,
		logger: logger.With().Str("component", "executor").Logger(),
		now:    time.Now,
	}
}

// Run executes the step under the cursor and appends its result to the history.
// It moves on to evaluation once every plan step has a history entry.
func (e *Executor) Run(ctx context.Context, state State) (State, error) {
	step, ok := state.CurrentStepDescription()
	if !ok {
		return state, fmt.Errorf("%w: cursor %d outside plan of %d steps", ErrStateInvariant, state.CurrentStep, len(state.Plan))
	}
	if len(state.History) != state.CurrentStep {
		return state, fmt.Errorf("%w: %d history entries for cursor %d", ErrStateInvariant, len(state.History), state.CurrentStep)
	}

	logger := tracing.LoggerFromContext(ctx, e.logger)

	next := state.Clone()
	next.History = append(next.History, ExecutionStep{
		StepNumber:  len(state.History) + 1,
		Description: step,
		Result:      e.executeStep(ctx, state, step),
		Timestamp:   e.now(),
	})

	completed := len(next.History)
	if completed < len(next.Plan) {
		next.CurrentStep = completed
		next.NextAction = ActionExecute
	} else {
		next.NextAction = ActionEvaluate
	}

	logger.Debug().
		Int("step", completed).
		Int("total", len(next.Plan)).
		Str("next", next.NextAction.String()).
		Msg("Step executed")

	return next, nil
}

func (e *Executor) executeStep(ctx context.Context, state State, step string) string {
	prompt, err := render(tmplExecute, executePromptData{
		Query:   state.Query,
		Step:    step,
		History: state.History,
	})
	if err == nil {
		var result string
		if result, err = generate(ctx, e.gen, prompt); err == nil {
			return result
		}
	}

	observability.RecordGenerationFailure(ActionExecute.String())
	logger := tracing.LoggerFromContext(ctx, e.logger)
	logger.Warn().
		Err(err).
		Int("step", len(state.History)+1).
		Msg("Step execution failed, using fallback result")
	return FallbackResult(step)
}
