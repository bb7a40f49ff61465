package plugin

import (
	"blindscontrol/internal/clock"
	"blindscontrol/internal/config"
	"blindscontrol/internal/cover"
	"blindscontrol/internal/ha"
	"blindscontrol/internal/mqtt"

	"go.uber.org/zap"
)

// ConfigSource returns the current configuration. config.Loader implements it.
type ConfigSource interface {
	Get() *config.Config
}

// StaticConfig is a ConfigSource that never changes
type StaticConfig struct {
	Config *config.Config
}

// Get returns the wrapped config
func (s StaticConfig) Get() *config.Config { return s.Config }

// Context provides dependencies to plugins during initialization.
//
// HAClient, StateWriter and MQTT are nil when the matching bridge is disabled;
// plugins that need them are gated by PluginInfo.Enabled.
type Context struct {
	// Covers indexes every cover across loaded config entries.
	Covers *cover.Registry

	// HAClient receives cover service calls from Home Assistant.
	HAClient ha.HAClient

	// StateWriter mirrors cover state into Home Assistant entities.
	StateWriter ha.StateSetter

	// MQTT publishes cover state and receives commands.
	MQTT mqtt.Messenger

	// Config is read on start and again on Reset.
	Config ConfigSource

	// Clock drives schedules.
	Clock clock.Clock

	// Logger should be namespaced with logger.Named("pluginname").
	Logger *zap.Logger
}

// NewContext creates a plugin context with the required dependencies.
// Optional bridges are set on the returned struct.
func NewContext(covers *cover.Registry, cfg ConfigSource, clk clock.Clock, logger *zap.Logger) *Context {
	return &Context{
		Covers: covers,
		Config: cfg,
		Clock:  clk,
		Logger: logger,
	}
}
