package agent

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/deepagent/pkg/planner"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func offlineRunner(t *testing.T, settings planner.Settings) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerConfig{
		Generator: NewGenerator(NewOfflineProvider(), GeneratorConfig{}),
		Provider:  ProviderOffline,
		Settings:  settings,
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	return runner
}

func TestNewRunnerRequiresGenerator(t *testing.T) {
	_, err := NewRunner(RunnerConfig{Logger: testLogger()})
	assert.Error(t, err)
}

func TestNewRunnerZeroSettingsUseDefaults(t *testing.T) {
	gen := planner.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "You are a planning assistant"):
			return "1. Look it up", nil
		case strings.HasPrefix(prompt, "You are a quality evaluator"):
			return "0.1", nil
		default:
			return "text", nil
		}
	})
	runner, err := NewRunner(RunnerConfig{Generator: gen, Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, planner.DefaultSettings(), runner.Settings())

	resp, err := runner.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, planner.DefaultMaxIterations, resp.Iterations)
	assert.Equal(t, planner.StopReasonMaxIterations, resp.StopReason)

	runner.UpdateSettings(planner.Settings{})
	assert.Equal(t, planner.DefaultSettings(), runner.Settings())
}

func TestRunnerRunOffline(t *testing.T) {
	runner := offlineRunner(t, planner.DefaultSettings())

	resp, err := runner.Run(context.Background(), "What is quantum computing?")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.FinalAnswer)
	assert.Len(t, resp.ExecutionTrace, 3)
	assert.Len(t, resp.PlanSteps, 3)
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, 0.75, resp.QualityScore)
	assert.Equal(t, planner.StopReasonQualityThreshold, resp.StopReason)
	assert.GreaterOrEqual(t, resp.DurationMs, int64(0))
}

func TestRunnerFreshSessionPerRun(t *testing.T) {
	runner := offlineRunner(t, planner.DefaultSettings())

	a, err := runner.Run(context.Background(), "q")
	require.NoError(t, err)
	b, err := runner.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.NotEqual(t, a.SessionID, b.SessionID)
}

func TestRunnerEmptyQuery(t *testing.T) {
	runner := offlineRunner(t, planner.DefaultSettings())

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := runner.Run(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
}

func TestRunnerRunWithTrace(t *testing.T) {
	runner := offlineRunner(t, planner.DefaultSettings())

	resp, states, err := runner.RunWithTrace(context.Background(), "q")
	require.NoError(t, err)

	require.Len(t, states, 6)
	assert.Equal(t, planner.ActionPlan, states[0].NextAction)
	assert.Equal(t, planner.ActionFinish, states[len(states)-1].NextAction)
	for _, s := range states {
		assert.Equal(t, resp.SessionID, s.SessionID)
	}
}

func TestRunnerUpdateSettings(t *testing.T) {
	runner := offlineRunner(t, planner.DefaultSettings())

	// Fallback score below the threshold forces replanning until max iterations.
	runner.UpdateSettings(planner.Settings{MaxIterations: 2, QualityThreshold: 0.9, FallbackScore: 0.5, SafetyCeiling: 10})
	assert.Equal(t, 2, runner.Settings().MaxIterations)

	resp, err := runner.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Iterations)
	assert.Equal(t, planner.StopReasonMaxIterations, resp.StopReason)
}

func TestRunnerAdmission(t *testing.T) {
	release := make(chan struct{})
	var inFlight atomic.Int32
	gen := planner.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		inFlight.Add(1)
		<-release
		return "", ErrOffline
	})

	runner, err := NewRunner(RunnerConfig{
		Generator:             gen,
		Settings:              planner.DefaultSettings(),
		MaxConcurrentSessions: 1,
		Logger:                testLogger(),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = runner.Run(context.Background(), "holds the only slot")
	}()

	require.Eventually(t, func() bool { return inFlight.Load() > 0 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = runner.Run(ctx, "waits for a slot")
	assert.ErrorIs(t, err, ErrAdmission)

	close(release)
	wg.Wait()
}

func TestRunnerStreamObserveError(t *testing.T) {
	runner := offlineRunner(t, planner.DefaultSettings())

	_, err := runner.Stream(context.Background(), "q", func(s planner.State) error {
		if s.NextAction == planner.ActionEvaluate {
			return assert.AnError
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "session "))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestNewResponseNeverNilSlices(t *testing.T) {
	resp := NewResponse(planner.State{SessionID: "s"}, time.Second)
	assert.NotNil(t, resp.ExecutionTrace)
	assert.NotNil(t, resp.PlanSteps)
	assert.Equal(t, int64(1000), resp.DurationMs)
}
