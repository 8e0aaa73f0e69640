package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/harun/deepagent/internal/observability"
)

// Watcher reloads the config file when it changes and hands every valid
// result to its subscribers. Invalid edits are logged and ignored.
type Watcher struct {
	loader *Loader
	logger zerolog.Logger

	mu          sync.Mutex
	subscribers []func(*Config)
	current     *Config
	stopped     bool
}

// NewWatcher creates a watcher for the loader's config file
func NewWatcher(loader *Loader, logger zerolog.Logger) *Watcher {
	return &Watcher{
		loader: loader,
		logger: logger.With().Str("component", "config_watcher").Logger(),
	}
}

// Subscribe registers fn to receive each reloaded config
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Current returns the last config accepted by the watcher, or nil
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Start begins watching. The file must exist.
func (w *Watcher) Start() error {
	path := w.loader.GetConfigPath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("cannot watch config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot watch config: %w", err)
	}
	v.OnConfigChange(w.handleChange)
	v.WatchConfig()

	w.logger.Info().Str("path", path).Msg("Watching config for changes")
	return nil
}

// Stop silences the watcher. viper offers no way to remove its fsnotify watch,
// so later events are dropped here instead.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}

func (w *Watcher) handleChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Warn().Err(err).Str("path", e.Name).Msg("Config reload failed, keeping previous settings")
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn().Err(err).Str("path", e.Name).Msg("Reloaded config is invalid, keeping previous settings")
		return
	}

	w.mu.Lock()
	w.current = cfg
	subscribers := append([]func(*Config){}, w.subscribers...)
	w.mu.Unlock()

	observability.RecordConfigAudit(context.Background(), "config_reloaded", e.Name, map[string]interface{}{
		"max_iterations":    cfg.Agent.MaxIterations,
		"quality_threshold": cfg.Agent.QualityThreshold,
	})
	w.logger.Info().Str("path", e.Name).Msg("Config reloaded")

	for _, fn := range subscribers {
		fn(cfg)
	}
}
