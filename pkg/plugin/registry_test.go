package plugin

import (
	"errors"
	"testing"

	"blindscontrol/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPlugin implements Plugin and Resettable, recording calls into a shared log
type mockPlugin struct {
	name     string
	startErr error
	resetErr error
	started  bool
	stopped  bool
	resets   int
	log      *[]string
}

func (m *mockPlugin) Name() string { return m.name }

func (m *mockPlugin) Start() error {
	if m.log != nil {
		*m.log = append(*m.log, "start "+m.name)
	}
	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	return nil
}

func (m *mockPlugin) Stop() {
	if m.log != nil {
		*m.log = append(*m.log, "stop "+m.name)
	}
	m.stopped = true
}

func (m *mockPlugin) Reset() error {
	m.resets++
	return m.resetErr
}

func factoryFor(p Plugin) Factory {
	return func(*Context) (Plugin, error) { return p, nil }
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name        string
		info        PluginInfo
		errContains string
	}{
		{
			name: "valid registration",
			info: PluginInfo{
				Name:        "habridge",
				Description: "Home Assistant bridge",
				Factory:     factoryFor(&mockPlugin{name: "habridge"}),
			},
		},
		{
			name:        "empty name",
			info:        PluginInfo{Factory: factoryFor(&mockPlugin{})},
			errContains: "name cannot be empty",
		},
		{
			name:        "nil factory",
			info:        PluginInfo{Name: "habridge"},
			errContains: "factory cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.info)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistry_PriorityOverride(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(PluginInfo{
		Name:        "sunschedule",
		Description: "Default schedule",
		Priority:    PriorityDefault,
		Factory:     factoryFor(&mockPlugin{name: "default"}),
	}))
	require.NoError(t, registry.Register(PluginInfo{
		Name:        "sunschedule",
		Description: "Custom schedule",
		Priority:    PriorityOverride,
		Factory:     factoryFor(&mockPlugin{name: "override"}),
	}))

	info := registry.Get("sunschedule")
	require.NotNil(t, info)
	assert.Equal(t, PriorityOverride, info.Priority)
	assert.Equal(t, "Custom schedule", info.Description)

	p, err := info.Factory(nil)
	require.NoError(t, err)
	assert.Equal(t, "override", p.Name())

	// Lower priority registrations are skipped without error
	require.NoError(t, registry.Register(PluginInfo{
		Name:        "sunschedule",
		Description: "Late default",
		Priority:    PriorityDefault,
		Factory:     factoryFor(&mockPlugin{name: "late"}),
	}))
	assert.Equal(t, "Custom schedule", registry.Get("sunschedule").Description)
	assert.Len(t, registry.Names(), 1)
}

func TestRegistry_List(t *testing.T) {
	registry := NewRegistry()
	registry.Register(PluginInfo{Name: "sunschedule", Order: 80, Factory: factoryFor(&mockPlugin{})})
	registry.Register(PluginInfo{Name: "mqttbridge", Order: 20, Factory: factoryFor(&mockPlugin{})})
	registry.Register(PluginInfo{Name: "habridge", Order: 20, Factory: factoryFor(&mockPlugin{})})
	registry.Register(PluginInfo{Name: "other", Factory: factoryFor(&mockPlugin{})})

	var names []string
	for _, info := range registry.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"habridge", "mqttbridge", "other", "sunschedule"}, names)
	assert.Equal(t, DefaultOrder, registry.Get("other").Order)
}

func TestRegistry_CreateAll(t *testing.T) {
	registry := NewRegistry()
	var created []string
	for _, tc := range []struct {
		name  string
		order int
	}{{"second", 20}, {"first", 10}} {
		name := tc.name
		registry.Register(PluginInfo{
			Name:  name,
			Order: tc.order,
			Factory: func(*Context) (Plugin, error) {
				created = append(created, name)
				return &mockPlugin{name: name}, nil
			},
		})
	}

	plugins, err := registry.CreateAll(nil)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, []string{"first", "second"}, created)
	assert.Equal(t, "first", plugins[0].Name())
}

func TestRegistry_CreateAll_ErrorCleanup(t *testing.T) {
	registry := NewRegistry()
	first := &mockPlugin{name: "first"}
	registry.Register(PluginInfo{Name: "first", Order: 10, Factory: factoryFor(first)})
	registry.Register(PluginInfo{
		Name:  "second",
		Order: 20,
		Factory: func(*Context) (Plugin, error) {
			return nil, errors.New("creation failed")
		},
	})

	plugins, err := registry.CreateAll(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create plugin second")
	assert.Nil(t, plugins)
	assert.True(t, first.stopped)
}

func TestRegistry_CreateAll_Enabled(t *testing.T) {
	registry := NewRegistry()
	registry.Register(PluginInfo{
		Name:    "mqttbridge",
		Factory: factoryFor(&mockPlugin{name: "mqttbridge"}),
		Enabled: func(cfg *config.Config) bool { return cfg.MQTT.Enabled },
	})
	registry.Register(PluginInfo{
		Name:    "always",
		Factory: factoryFor(&mockPlugin{name: "always"}),
	})

	cfg := config.Default()
	ctx := &Context{Config: StaticConfig{Config: cfg}}

	plugins, err := registry.CreateAll(ctx)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "always", plugins[0].Name())

	cfg.MQTT.Enabled = true
	plugins, err = registry.CreateAll(ctx)
	require.NoError(t, err)
	assert.Len(t, plugins, 2)

	// Without a config, gated plugins are skipped
	plugins, err = registry.CreateAll(nil)
	require.NoError(t, err)
	assert.Len(t, plugins, 1)
}

func TestStartAll(t *testing.T) {
	var calls []string
	a := &mockPlugin{name: "a", log: &calls}
	b := &mockPlugin{name: "b", log: &calls}
	require.NoError(t, StartAll([]Plugin{a, b}))
	assert.True(t, a.started)
	assert.True(t, b.started)

	StopAll([]Plugin{a, b})
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, calls)
}

func TestStartAll_FailureStopsStarted(t *testing.T) {
	var calls []string
	a := &mockPlugin{name: "a", log: &calls}
	b := &mockPlugin{name: "b", log: &calls, startErr: errors.New("boom")}
	c := &mockPlugin{name: "c", log: &calls}

	err := StartAll([]Plugin{a, b, c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start plugin b")
	assert.Equal(t, []string{"start a", "start b", "stop a"}, calls)
	assert.False(t, c.started)
}

func TestResetAll(t *testing.T) {
	ok := &mockPlugin{name: "ok"}
	bad := &mockPlugin{name: "bad", resetErr: errors.New("no location")}

	err := ResetAll([]Plugin{ok, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reset plugin bad")
	assert.Equal(t, 1, ok.resets)
	assert.Equal(t, 1, bad.resets)

	assert.NoError(t, ResetAll([]Plugin{ok}))
}

func TestRegistry_Clear(t *testing.T) {
	registry := NewRegistry()
	registry.Register(PluginInfo{Name: "test", Factory: factoryFor(&mockPlugin{})})
	assert.Len(t, registry.Names(), 1)

	registry.Clear()
	assert.Empty(t, registry.Names())
	assert.Nil(t, registry.Get("test"))
}

func TestGlobalRegistry(t *testing.T) {
	ClearGlobal()
	defer ClearGlobal()

	require.NoError(t, Register(PluginInfo{
		Name:        "global-test",
		Description: "Testing global registry",
		Factory:     factoryFor(&mockPlugin{name: "global"}),
	}))

	require.NotNil(t, Get("global-test"))
	assert.Len(t, List(), 1)
	assert.Contains(t, Names(), "global-test")

	plugins, err := CreateAll(nil)
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "global", plugins[0].Name())
}
