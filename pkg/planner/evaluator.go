package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
)

// Evaluator synthesizes the step results, scores the answer and decides
// whether the loop stops or plans again.
type Evaluator struct {
	gen      Generator
	settings Settings
	logger   zerolog.Logger
}

// NewEvaluator creates a new evaluator
func NewEvaluator(gen Generator, settings Settings, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		gen:      gen,
		settings: settings.Normalized(),
		logger:   logger.With().Str("component", "evaluator").Logger(),
	}
}

// Run requires a fully executed plan
func (e *Evaluator) Run(ctx context.Context, state State) (State, error) {
	if len(state.Plan) == 0 || len(state.History) != len(state.Plan) {
		return state, fmt.Errorf("%w: %d history entries for %d plan steps", ErrStateInvariant, len(state.History), len(state.Plan))
	}

	logger := tracing.LoggerFromContext(ctx, e.logger)

	next := state.Clone()
	next.Synthesis = e.synthesize(ctx, state)
	next.QualityScore = e.score(ctx, state.Query, next.Synthesis)
	next.NextAction, next.StopReason = e.DetermineNextAction(next.IterationCount, next.QualityScore)

	logger.Info().
		Int("iteration", next.IterationCount).
		Float64("score", next.QualityScore).
		Str("next", next.NextAction.String()).
		Str("stop_reason", string(next.StopReason)).
		Msg("Evaluation complete")

	return next, nil
}

// DetermineNextAction finishes when the score reaches the quality threshold or
// the iteration limit is reached, and plans again otherwise.
func (e *Evaluator) DetermineNextAction(iterations int, score float64) (Action, StopReason) {
	if score >= e.settings.QualityThreshold {
		return ActionFinish, StopReasonQualityThreshold
	}
	if iterations >= e.settings.MaxIterations {
		return ActionFinish, StopReasonMaxIterations
	}
	return ActionPlan, StopReasonNone
}

func (e *Evaluator) synthesize(ctx context.Context, state State) string {
	prompt, err := render(tmplSynthesis, synthesisPromptData{
		Query:   state.Query,
		History: state.History,
	})
	if err == nil {
		var synthesis string
		if synthesis, err = generate(ctx, e.gen, prompt); err == nil {
			if strings.TrimSpace(synthesis) != "" {
				return synthesis
			}
			err = errBlankSynthesis
		}
	}

	observability.RecordGenerationFailure("synthesize")
	logger := tracing.LoggerFromContext(ctx, e.logger)
	logger.Warn().Err(err).Msg("Synthesis failed, using fallback summary")
	return FallbackSynthesis(state.Query, state.History)
}

func (e *Evaluator) score(ctx context.Context, query, synthesis string) float64 {
	prompt, err := render(tmplScore, scorePromptData{
		Query:     query,
		Synthesis: synthesis,
	})
	if err == nil {
		var response string
		if response, err = generate(ctx, e.gen, prompt); err == nil {
			var score float64
			if score, err = ParseScore(response); err == nil {
				return score
			}
		}
	}

	observability.RecordGenerationFailure("score")
	logger := tracing.LoggerFromContext(ctx, e.logger)
	logger.Warn().
		Err(err).
		Float64("fallback_score", e.settings.FallbackScore).
		Msg("Scoring failed, using fallback score")
	return e.settings.FallbackScore
}
