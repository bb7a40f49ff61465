package sunschedule

import (
	"blindscontrol/internal/config"
	"blindscontrol/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "sunschedule",
		Description: "Opens covers at sunrise and closes them at sunset",
		Priority:    plugin.PriorityDefault,
		Order:       80,
		Factory:     createPlugin,
		Enabled:     func(cfg *config.Config) bool { return cfg.SunSchedule.Enabled },
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	manager := NewManager(ctx.Covers, ctx.Config.Get().SunSchedule, ctx.Clock, ctx.Logger)
	return &pluginAdapter{manager: manager, config: ctx.Config}, nil
}

// pluginAdapter wraps the Manager to implement plugin.Plugin and plugin.Resettable.
type pluginAdapter struct {
	manager *Manager
	config  plugin.ConfigSource
}

func (p *pluginAdapter) Name() string {
	return "sunschedule"
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}

// Reset picks up a reloaded configuration
func (p *pluginAdapter) Reset() error {
	p.manager.Reconfigure(p.config.Get().SunSchedule)
	return nil
}

// Manager exposes the schedule for status reporting
func (p *pluginAdapter) Manager() *Manager {
	return p.manager
}
