package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(gen Generator, settings Settings) *Graph {
	return NewGraph(gen, settings, WithLogger(testLogger()))
}

func TestGraphAllGenerationFails(t *testing.T) {
	g := newTestGraph(failingGenerator, DefaultSettings())

	final, err := g.Execute(context.Background(), NewState("What is quantum computing?"))
	require.NoError(t, err)

	assert.Equal(t, FallbackPlan("What is quantum computing?"), final.Plan)
	assert.Len(t, final.History, 3)
	assert.Equal(t, 0.75, final.QualityScore)
	assert.Equal(t, ActionFinish, final.NextAction)
	assert.Equal(t, StopReasonQualityThreshold, final.StopReason)
	assert.Equal(t, 1, final.IterationCount)
	assert.NotEmpty(t, final.Synthesis)
	assert.Contains(t, final.Synthesis, "Based on the query: 'What is quantum computing?'")

	for i, step := range final.History {
		assert.Equal(t, i+1, step.StepNumber)
		assert.Equal(t, FallbackResult(final.Plan[i]), step.Result)
	}
}

func TestGraphLowScoreTriggersReplan(t *testing.T) {
	gen := newScriptedGenerator().
		on("plan", ok("1. Gather\n2. Answer"), ok("1. Gather more\n2. Compare\n3. Answer")).
		on("execute", ok("done")).
		on("synthesize", ok("draft answer"), ok("better answer")).
		on("score", ok("0.6"), ok("0.9"))

	g := newTestGraph(gen, Settings{MaxIterations: 10, QualityThreshold: 0.75, FallbackScore: 0.75, SafetyCeiling: 10})

	states, err := g.ExecuteWithTrace(context.Background(), NewState("q"))
	require.NoError(t, err)

	var afterFirstEval, afterSecondPlan *State
	for i := range states {
		s := states[i]
		if s.NextAction == ActionPlan && s.IterationCount == 1 && afterFirstEval == nil {
			afterFirstEval = &states[i]
		}
		if s.IterationCount == 2 && afterSecondPlan == nil {
			afterSecondPlan = &states[i]
		}
	}
	require.NotNil(t, afterFirstEval)
	assert.InDelta(t, 0.6, afterFirstEval.QualityScore, 1e-9)
	assert.Equal(t, "draft answer", afterFirstEval.Synthesis)

	require.NotNil(t, afterSecondPlan)
	assert.Equal(t, ActionExecute, afterSecondPlan.NextAction)
	assert.Equal(t, []string{"Gather more", "Compare", "Answer"}, afterSecondPlan.Plan)
	assert.Empty(t, afterSecondPlan.History)

	final := states[len(states)-1]
	assert.Equal(t, ActionFinish, final.NextAction)
	assert.Equal(t, "better answer", final.Synthesis)
	assert.Len(t, final.History, 3)

	require.Len(t, gen.calls("plan"), 2)
	assert.Contains(t, gen.calls("plan")[1], "draft answer")
}

func TestGraphMaxIterationsForcesFinish(t *testing.T) {
	gen := newScriptedGenerator().
		on("plan", ok("1. Only step")).
		on("execute", ok("r")).
		on("synthesize", ok("s")).
		on("score", ok("0.1"))

	g := newTestGraph(gen, Settings{MaxIterations: 3, QualityThreshold: 0.75, FallbackScore: 0.75, SafetyCeiling: 10})

	final, err := g.Execute(context.Background(), NewState("q"))
	require.NoError(t, err)

	assert.Equal(t, 3, final.IterationCount)
	assert.Equal(t, ActionFinish, final.NextAction)
	assert.Equal(t, StopReasonMaxIterations, final.StopReason)
	assert.Len(t, gen.calls("plan"), 3)
}

func TestGraphSafetyCeiling(t *testing.T) {
	gen := newScriptedGenerator().
		on("plan", ok("1. Only step")).
		on("execute", ok("r")).
		on("synthesize", ok("last synthesis")).
		on("score", ok("0.2"))

	g := newTestGraph(gen, Settings{MaxIterations: 50, QualityThreshold: 0.75, FallbackScore: 0.75, SafetyCeiling: 4})

	final, err := g.Execute(context.Background(), NewState("q"))
	require.NoError(t, err)

	assert.Equal(t, 4, final.IterationCount)
	assert.Equal(t, ActionFinish, final.NextAction)
	assert.Equal(t, StopReasonSafetyCeiling, final.StopReason)
	assert.Equal(t, "last synthesis", final.Synthesis)
}

func TestGraphTerminationBound(t *testing.T) {
	scores := []string{"0", "0.74", "abc", "-3", "garbage 0.5"}
	for _, score := range scores {
		t.Run(score, func(t *testing.T) {
			gen := newScriptedGenerator().
				on("plan", ok("1. a\n2. b")).
				on("execute", ok("r")).
				on("synthesize", ok("s")).
				on("score", ok(score))
			settings := Settings{MaxIterations: 5, QualityThreshold: 0.99, FallbackScore: 0.2, SafetyCeiling: 7}

			states, err := newTestGraph(gen, settings).ExecuteWithTrace(context.Background(), NewState("q"))
			require.NoError(t, err)

			final := states[len(states)-1]
			assert.LessOrEqual(t, final.IterationCount, 5)
			assert.Equal(t, ActionFinish, final.NextAction)
			for _, s := range states {
				assert.GreaterOrEqual(t, s.QualityScore, 0.0)
				assert.LessOrEqual(t, s.QualityScore, 1.0)
			}
		})
	}
}

func TestGraphTraceSnapshots(t *testing.T) {
	g := newTestGraph(failingGenerator, DefaultSettings())
	initial := NewState("q")

	states, err := g.ExecuteWithTrace(context.Background(), initial)
	require.NoError(t, err)

	// initial, plan, 3 executes, evaluate
	require.Len(t, states, 6)
	assert.Equal(t, initial.SessionID, states[0].SessionID)
	assert.Equal(t, ActionPlan, states[0].NextAction)
	assert.Empty(t, states[0].Plan)

	for i := 1; i < len(states); i++ {
		assert.Equal(t, initial.SessionID, states[i].SessionID)
		assert.GreaterOrEqual(t, states[i].IterationCount, states[i-1].IterationCount)
	}

	for i := 2; i <= 4; i++ {
		assert.Len(t, states[i].History, i-1, "history grows by one per execute")
	}

	states[2].History[0].Result = "mutated"
	assert.NotEqual(t, "mutated", states[3].History[0].Result)
}

func TestGraphUnknownAction(t *testing.T) {
	g := newTestGraph(failingGenerator, DefaultSettings())
	state := NewState("q")
	state.NextAction = Action(99)

	_, err := g.Execute(context.Background(), state)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestGraphStructuralErrorAborts(t *testing.T) {
	g := newTestGraph(failingGenerator, DefaultSettings())
	state := NewState("q")
	state.NextAction = ActionExecute

	_, err := g.Execute(context.Background(), state)
	assert.ErrorIs(t, err, ErrStateInvariant)
}

func TestGraphFinishedStateIsReturned(t *testing.T) {
	gen := newScriptedGenerator()
	g := newTestGraph(gen, DefaultSettings())
	state := NewState("q")
	state.NextAction = ActionFinish

	final, err := g.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, state, final)
	assert.Empty(t, gen.calls("plan"))
}

func TestGraphObserveErrorStops(t *testing.T) {
	stop := errors.New("client gone")
	g := newTestGraph(failingGenerator, DefaultSettings())

	seen := 0
	_, err := g.Run(context.Background(), NewState("q"), func(State) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, seen)
}

func TestGraphNilGenerator(t *testing.T) {
	final, err := newTestGraph(nil, DefaultSettings()).Execute(context.Background(), NewState("q"))
	require.NoError(t, err)
	assert.Len(t, final.History, 3)
	assert.Equal(t, ActionFinish, final.NextAction)
}

func TestGraphZeroSettingsUseDefaults(t *testing.T) {
	gen := newScriptedGenerator().
		on("plan", ok("1. Gather\n2. Answer")).
		on("execute", ok("done")).
		on("synthesize", ok("answer")).
		on("score", ok("0.1"))

	g := newTestGraph(gen, Settings{})
	assert.Equal(t, DefaultSettings(), g.Settings())

	final, err := g.Execute(context.Background(), NewState("q"))
	require.NoError(t, err)

	assert.Equal(t, 0.1, final.QualityScore)
	assert.Equal(t, DefaultMaxIterations, final.IterationCount)
	assert.Equal(t, StopReasonMaxIterations, final.StopReason)
}
