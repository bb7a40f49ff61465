package mqttbridge

import (
	"fmt"

	"blindscontrol/internal/config"
	"blindscontrol/pkg/plugin"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        "mqttbridge",
		Description: "Publishes cover state over MQTT and accepts commands",
		Priority:    plugin.PriorityDefault,
		Order:       30,
		Factory:     createPlugin,
		Enabled:     func(cfg *config.Config) bool { return cfg.MQTT.Enabled },
	})
}

func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	if ctx.MQTT == nil {
		return nil, fmt.Errorf("mqttbridge plugin requires an MQTT connection")
	}
	return &pluginAdapter{manager: NewManager(ctx.Covers, ctx.MQTT, ctx.Logger)}, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
}

func (p *pluginAdapter) Name() string {
	return "mqttbridge"
}

func (p *pluginAdapter) Start() error {
	return p.manager.Start()
}

func (p *pluginAdapter) Stop() {
	p.manager.Stop()
}
