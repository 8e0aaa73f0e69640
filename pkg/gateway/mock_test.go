package gateway

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harun/deepagent/pkg/agent"
	"github.com/harun/deepagent/pkg/planner"
)

// MockRunner is a mock implementation of SessionRunner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, query string) (*agent.Response, error) {
	args := m.Called(ctx, query)
	resp, _ := args.Get(0).(*agent.Response)
	return resp, args.Error(1)
}

func (m *MockRunner) RunWithTrace(ctx context.Context, query string) (*agent.Response, []planner.State, error) {
	args := m.Called(ctx, query)
	resp, _ := args.Get(0).(*agent.Response)
	states, _ := args.Get(1).([]planner.State)
	return resp, states, args.Error(2)
}

func (m *MockRunner) Stream(ctx context.Context, query string, observe func(planner.State) error) (*agent.Response, error) {
	args := m.Called(ctx, query, observe)
	resp, _ := args.Get(0).(*agent.Response)
	return resp, args.Error(1)
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).Level(zerolog.Disabled)
}

func offlineRunner(t *testing.T) *agent.Runner {
	t.Helper()
	runner, err := agent.NewRunner(agent.RunnerConfig{
		Generator: agent.NewGenerator(agent.NewOfflineProvider(), agent.GeneratorConfig{}),
		Provider:  agent.ProviderOffline,
		Settings:  planner.DefaultSettings(),
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	return runner
}

func newTestServer(t *testing.T, runner SessionRunner, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Host:   "127.0.0.1",
		Runner: runner,
		Logger: testLogger(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
	})
	return s
}
