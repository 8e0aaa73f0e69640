package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/deepagent/internal/config"
	"github.com/harun/deepagent/internal/logger"
	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
	"github.com/harun/deepagent/pkg/agent"
	"github.com/harun/deepagent/pkg/gateway"
)

// Daemon runs the gateway in front of one agent runner and keeps the runner's
// settings in sync with the config file.
type Daemon struct {
	config     *config.Config
	configPath string
	logger     *logger.Logger

	// applied is the config most recently handed to applyConfig
	applied *config.Config

	runner        *agent.Runner
	gatewayServer *gateway.Server
	watcher       *config.Watcher

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
	auditEnabled   bool
}

// New creates a new daemon instance
func New(cfg *config.Config, configPath string, log *logger.Logger) (*Daemon, error) {
	observability.EnsureRegistered()

	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		logger:     log,
		applied:    cfg,
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Msg("Tracing initialized successfully")
		}
	}

	if cfg.Logging.AuditFile != "" {
		if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
			d.shutdownTracing()
			return nil, fmt.Errorf("failed to initialize audit log: %w", err)
		}
		d.auditEnabled = true
	}

	runner, err := BuildRunner(cfg, log.GetZerolog())
	if err != nil {
		d.release()
		return nil, fmt.Errorf("failed to initialize agent runner: %w", err)
	}
	d.runner = runner

	srv, err := gateway.NewServer(gateway.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Runner:          runner,
		Logger:          log.GetZerolog(),
	})
	if err != nil {
		d.release()
		return nil, fmt.Errorf("failed to initialize gateway: %w", err)
	}
	d.gatewayServer = srv

	d.watcher = config.NewWatcher(config.NewLoader(configPath), log.GetZerolog())
	d.watcher.Subscribe(d.applyConfig)

	return d, nil
}

// Start starts the gateway and the config watcher
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	for _, warning := range config.NewValidator().ValidateConfig(d.config) {
		d.logger.Warn().Err(warning).Msg("Config warning")
	}

	if err := d.gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}

	if err := d.watcher.Start(); err != nil {
		d.logger.Info().Err(err).Msg("Config hot reload disabled")
	}

	d.running = true
	d.startTime = time.Now()

	d.logger.Info().
		Str("addr", d.gatewayServer.Addr()).
		Msg("Daemon started successfully")

	return nil
}

// Stop drains the gateway and releases tracing and audit resources
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.logger.Info().Msg("Stopping daemon...")

	d.watcher.Stop()

	var stopErr error
	if err := d.gatewayServer.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop gateway")
		stopErr = err
	}

	d.release()
	d.running = false

	d.logger.Info().Msg("Daemon stopped successfully")
	return stopErr
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	return d.Stop()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running: d.running,
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
		status.Addr = d.gatewayServer.Addr()
	}

	return status
}

// Runner returns the agent runner served by the daemon
func (d *Daemon) Runner() *agent.Runner {
	return d.runner
}

// Status represents daemon status
type Status struct {
	Running   bool
	Addr      string
	Uptime    time.Duration
	StartTime time.Time
}

// applyConfig pushes reloaded loop settings into the runner.
// Provider and server changes need a restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	for _, warning := range config.NewValidator().ValidateThresholds(cfg.Agent) {
		d.logger.Warn().Err(warning).Msg("Config warning")
	}

	d.runner.UpdateSettings(SettingsFromConfig(cfg))

	d.mu.Lock()
	previous := d.applied
	d.applied = cfg
	d.mu.Unlock()

	before, _ := previous.ActiveProfile()
	after, _ := cfg.ActiveProfile()
	if before.ID != after.ID || before.Provider != after.Provider || before.Model != after.Model {
		d.logger.Warn().
			Str("profile", after.ID).
			Msg("AI profile changed, restart to switch providers")
	}
}

func (d *Daemon) release() {
	d.shutdownTracing()

	if d.auditEnabled {
		if err := observability.GetAuditLogger().Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close audit logger")
		}
		observability.SetAuditLogger(observability.NewAuditLogger(io.Discard))
		d.auditEnabled = false
	}
}

func (d *Daemon) shutdownTracing() {
	if !d.tracingEnabled {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
		d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
	}
	d.tracingEnabled = false
}
