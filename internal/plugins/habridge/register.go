package habridge

import (
	"fmt"

	"blindscontrol/internal/config"
	"blindscontrol/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "habridge",
		Description: "Mirrors covers into Home Assistant and handles cover service calls",
		Priority:    plugin.PriorityDefault,
		Order:       20,
		Factory:     createPlugin,
		Enabled:     func(cfg *config.Config) bool { return cfg.HomeAssistant.Enabled },
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	if ctx.HAClient == nil || ctx.StateWriter == nil {
		return nil, fmt.Errorf("habridge plugin requires a Home Assistant client and state writer")
	}

	readOnly := ctx.Config.Get().HomeAssistant.ReadOnly
	manager := NewManager(ctx.Covers, ctx.HAClient, ctx.StateWriter, ctx.Logger, readOnly)
	return &pluginAdapter{manager: manager}, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
}

func (p *pluginAdapter) Name() string {
	return "habridge"
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}
