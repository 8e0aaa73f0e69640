package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
)

// Graph owns the session state and dispatches to exactly one phase per transition
type Graph struct {
	planner   *Planner
	executor  *Executor
	evaluator *Evaluator
	settings  Settings
	logger    zerolog.Logger
	now       func() time.Time
}

// GraphOption configures a Graph
type GraphOption func(*Graph)

// WithLogger sets the logger shared by the graph and its phases
func WithLogger(logger zerolog.Logger) GraphOption {
	return func(g *Graph) {
		g.logger = logger
	}
}

// WithClock overrides the time source used for history timestamps
func WithClock(now func() time.Time) GraphOption {
	return func(g *Graph) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGraph wires the three phases around one generator.
// Settings are copied; later changes by the caller do not affect this graph.
func NewGraph(gen Generator, settings Settings, opts ...GraphOption) *Graph {
	g := &Graph{
		settings: settings.Normalized(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.planner = NewPlanner(gen, g.logger)
	g.executor = NewExecutor(gen, g.logger)
	g.executor.now = g.now
	g.evaluator = NewEvaluator(gen, g.settings, g.logger)

	return g
}

// Settings returns the normalized settings the graph runs with
func (g *Graph) Settings() Settings {
	return g.settings
}

// Execute runs the loop to completion and returns the final state
func (g *Graph) Execute(ctx context.Context, initial State) (State, error) {
	return g.Run(ctx, initial, nil)
}

// ExecuteWithTrace runs the loop and returns every state it passed through,
// starting with the initial one. On error the states collected so far are returned.
func (g *Graph) ExecuteWithTrace(ctx context.Context, initial State) ([]State, error) {
	var states []State
	_, err := g.Run(ctx, initial, func(s State) error {
		states = append(states, s)
		return nil
	})
	return states, err
}

// Run drives the loop and hands a copy of every state, the initial one
// included, to observe. An error from observe stops the run.
func (g *Graph) Run(ctx context.Context, initial State, observe func(State) error) (State, error) {
	if tracing.GetSessionID(ctx) == "" && initial.SessionID != "" {
		ctx = tracing.WithSessionID(ctx, initial.SessionID)
	}
	ctx, span := tracing.StartSpan(ctx, "graph.execute",
		attribute.Int("settings.max_iterations", g.settings.MaxIterations),
		attribute.Int("settings.safety_ceiling", g.settings.SafetyCeiling),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, g.logger)

	emit := func(s State) error {
		if observe == nil {
			return nil
		}
		return observe(s.Clone())
	}

	state := initial.Clone()
	if err := emit(state); err != nil {
		return state, err
	}

	cycleTransitions := 0
	for state.NextAction != ActionFinish {
		if state.NextAction == ActionPlan && state.IterationCount >= g.settings.SafetyCeiling {
			state = state.Clone()
			state.NextAction = ActionFinish
			state.StopReason = StopReasonSafetyCeiling
			logger.Warn().
				Int("iterations", state.IterationCount).
				Int("ceiling", g.settings.SafetyCeiling).
				Msg("Safety ceiling reached, finishing with last synthesis")
			if err := emit(state); err != nil {
				return state, err
			}
			break
		}

		next, err := g.step(ctx, state)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error().Err(err).Str("action", state.NextAction.String()).Msg("Session aborted")
			return state, err
		}

		if state.NextAction == ActionPlan {
			cycleTransitions = 0
		} else {
			cycleTransitions++
			if cycleTransitions > len(next.Plan)+1 {
				err := fmt.Errorf("%w: %d transitions in a cycle of %d steps", ErrStateInvariant, cycleTransitions, len(next.Plan))
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return state, err
			}
		}

		state = next
		if err := emit(state); err != nil {
			return state, err
		}
	}

	span.SetAttributes(
		attribute.Int("session.iterations", state.IterationCount),
		attribute.Float64("session.quality_score", state.QualityScore),
		attribute.String("session.stop_reason", string(state.StopReason)),
	)

	logger.Info().
		Int("iterations", state.IterationCount).
		Float64("score", state.QualityScore).
		Str("stop_reason", string(state.StopReason)).
		Msg("Session finished")

	return state, nil
}

func (g *Graph) step(ctx context.Context, state State) (State, error) {
	action := state.NextAction

	var run func(context.Context, State) (State, error)
	switch action {
	case ActionPlan:
		run = g.planner.Run
	case ActionExecute:
		run = g.executor.Run
	case ActionEvaluate:
		run = g.evaluator.Run
	case ActionFinish:
		return state, nil
	default:
		return state, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	ctx, span := tracing.StartSpan(ctx, "phase."+action.String(),
		attribute.Int("session.iteration", state.IterationCount),
		attribute.Int("session.step", state.CurrentStep),
	)
	defer span.End()

	start := time.Now()
	next, err := run(ctx, state)
	observability.RecordPhase(action.String(), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return next, err
}
