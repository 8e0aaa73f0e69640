package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"

	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
	"github.com/harun/deepagent/pkg/planner"
)

// DefaultMaxConcurrentSessions bounds sessions when the config leaves it unset
const DefaultMaxConcurrentSessions = 8

// Runner runs one planning session per query
type Runner struct {
	gen      planner.Generator
	provider string
	logger   zerolog.Logger
	sem      *semaphore.Weighted

	settings   planner.Settings
	settingsMu sync.RWMutex
}

// RunnerConfig holds runner configuration
type RunnerConfig struct {
	Generator             planner.Generator
	Provider              string
	Settings              planner.Settings
	MaxConcurrentSessions int
	Logger                zerolog.Logger
}

// NewRunner creates a new agent runner
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	limit := cfg.MaxConcurrentSessions
	if limit <= 0 {
		limit = DefaultMaxConcurrentSessions
	}

	provider := cfg.Provider
	if provider == "" {
		provider = "custom"
	}

	return &Runner{
		gen:      cfg.Generator,
		provider: provider,
		logger:   cfg.Logger,
		sem:      semaphore.NewWeighted(int64(limit)),
		settings: cfg.Settings.Normalized(),
	}, nil
}

// Settings returns the settings new sessions start with
func (r *Runner) Settings() planner.Settings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

// UpdateSettings swaps the settings for sessions started afterwards.
// Sessions already running keep the snapshot they started with.
func (r *Runner) UpdateSettings(settings planner.Settings) {
	settings = settings.Normalized()

	r.settingsMu.Lock()
	r.settings = settings
	r.settingsMu.Unlock()

	r.logger.Info().
		Str("component", "runner").
		Int("max_iterations", settings.MaxIterations).
		Float64("quality_threshold", settings.QualityThreshold).
		Float64("fallback_score", settings.FallbackScore).
		Int("safety_ceiling", settings.SafetyCeiling).
		Msg("Agent settings updated")
}

// Run executes one session and returns its result
func (r *Runner) Run(ctx context.Context, query string) (*Response, error) {
	return r.Stream(ctx, query, nil)
}

// RunWithTrace executes one session and also returns every intermediate state
func (r *Runner) RunWithTrace(ctx context.Context, query string) (*Response, []planner.State, error) {
	var states []planner.State
	resp, err := r.Stream(ctx, query, func(s planner.State) error {
		states = append(states, s)
		return nil
	})
	return resp, states, err
}

// Stream executes one session and hands every state to observe as it is produced
func (r *Runner) Stream(ctx context.Context, query string, observe func(planner.State) error) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdmission, err)
	}
	defer r.sem.Release(1)

	state := planner.NewState(query)
	ctx = tracing.NewSessionContext(ctx, state.SessionID)
	ctx, span := tracing.StartSpan(ctx, "agent.run", attribute.String("provider", r.provider))
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("component", "runner").Logger()
	logger.Info().Str("provider", r.provider).Int("query_length", len(query)).Msg("Session started")

	observability.SessionStarted()
	observability.RecordSessionAudit(ctx, state.SessionID, "session_started", "pending", map[string]interface{}{
		"provider": r.provider,
	})

	graph := planner.NewGraph(r.gen, r.Settings(), planner.WithLogger(r.logger))

	start := time.Now()
	final, err := graph.Run(ctx, state, observe)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordSessionEnd("error", duration, final.IterationCount, final.QualityScore)
		observability.RecordSessionAudit(ctx, state.SessionID, "session_finished", "failure", map[string]interface{}{
			"error": err.Error(),
		})
		if errors.Is(err, planner.ErrUnknownAction) || errors.Is(err, planner.ErrStateInvariant) {
			logger.Error().Err(err).Msg("Session aborted by structural error")
		}
		return nil, fmt.Errorf("session %s: %w", state.SessionID, err)
	}

	observability.RecordSessionEnd("success", duration, final.IterationCount, final.QualityScore)
	observability.RecordSessionAudit(ctx, state.SessionID, "session_finished", "success", map[string]interface{}{
		"iterations":    final.IterationCount,
		"quality_score": final.QualityScore,
		"stop_reason":   string(final.StopReason),
	})

	logger.Info().
		Dur("duration", duration).
		Int("iterations", final.IterationCount).
		Float64("score", final.QualityScore).
		Msg("Session completed")

	return NewResponse(final, duration), nil
}
