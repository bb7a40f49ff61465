package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blindscontrol/internal/clock"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader manages configuration file loading and reloading
type Loader struct {
	configDir string
	clock     clock.Clock
	logger    *zap.Logger

	mu       sync.RWMutex
	config   *Config
	onReload []func(*Config)
	timer    clock.Timer
	stopped  bool
}

// NewLoader creates a new configuration loader
func NewLoader(configDir string, clk clock.Clock, logger *zap.Logger) *Loader {
	return &Loader{
		configDir: configDir,
		clock:     clk,
		logger:    logger.Named("config"),
	}
}

// Path returns the config file path
func (l *Loader) Path() string {
	return filepath.Join(l.configDir, FileName)
}

// Load reads blinds.yaml, applies defaults and environment overrides, then validates
func (l *Loader) Load() (*Config, error) {
	path := l.Path()
	l.logger.Debug("Loading config", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()

	l.logger.Info("Config loaded",
		zap.String("path", path),
		zap.Int("entries", len(cfg.Entries)))
	return cfg, nil
}

// Get returns the last successfully loaded config, or nil
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnReload registers a callback run after each successful auto-reload
func (l *Loader) OnReload(f func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReload = append(l.onReload, f)
}

// Reload loads the file again and runs the reload callbacks.
// On failure the previous config stays in effect.
func (l *Loader) Reload() error {
	cfg, err := l.Load()
	if err != nil {
		return err
	}

	l.mu.RLock()
	callbacks := append([]func(*Config){}, l.onReload...)
	l.mu.RUnlock()

	for _, f := range callbacks {
		f(cfg)
	}
	return nil
}

// StartAutoReload reloads the config daily at 00:01
func (l *Loader) StartAutoReload() {
	l.logger.Info("Starting auto-reload scheduler (daily at 00:01)")
	l.scheduleNext()
}

func (l *Loader) scheduleNext() {
	now := l.clock.Now()
	next := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 1, 0, 0, now.Location())

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.timer = l.clock.AfterFunc(next.Sub(now), func() {
		l.logger.Info("Auto-reloading config")
		if err := l.Reload(); err != nil {
			l.logger.Error("Failed to auto-reload config", zap.Error(err))
		}
		l.scheduleNext()
	})
}

// Stop stops the auto-reload scheduler
func (l *Loader) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.timer != nil {
		l.timer.Stop()
	}
}
