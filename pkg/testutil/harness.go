// Package testutil provides an end-to-end environment for testing covers and
// plugins against an emulated blind controller.
package testutil

import (
	"context"
	"fmt"
	"time"

	"blindscontrol/internal/clock"
	"blindscontrol/internal/config"
	"blindscontrol/internal/controller"
	"blindscontrol/internal/cover"
	"blindscontrol/internal/ha"
	"blindscontrol/internal/integration"
	"blindscontrol/internal/mqtt"
	"blindscontrol/pkg/plugin"

	"go.uber.org/zap"
)

// Start is the mock clock's initial time in every TestEnv
var Start = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// TestEnv wires a real controller client against a MockControllerServer, with
// in-memory Home Assistant and MQTT bridges.
//
// Example usage:
//
//	env := testutil.NewTestEnv(controller.DeviceConfig{1: {Open: 180, Close: 20}})
//	defer env.Cleanup()
//
//	if _, err := env.AddEntry(ctx, integration.DomainBlindsControl); err != nil {
//	    t.Fatal(err)
//	}
type TestEnv struct {
	Server  *MockControllerServer
	Covers  *cover.Registry
	Manager *integration.Manager
	HA      *ha.MockClient
	States  *ha.MockStateWriter
	MQTT    *mqtt.MockMessenger
	Clock   *clock.Mock
	Config  *config.Config
	Logger  *zap.Logger
}

// NewTestEnv starts a mock controller serving device and wires the rest in memory
func NewTestEnv(device controller.DeviceConfig) *TestEnv {
	logger := zap.NewNop()
	clk := clock.NewMock(Start)
	covers := cover.NewRegistry()

	return &TestEnv{
		Server:  NewMockControllerServer(device),
		Covers:  covers,
		Manager: integration.NewManager(covers, clk, nil, logger),
		HA:      ha.NewMockClient(),
		States:  ha.NewMockStateWriter(),
		MQTT:    mqtt.NewMockMessenger("blinds"),
		Clock:   clk,
		Config:  config.Default(),
		Logger:  logger,
	}
}

// AddEntry sets up an entry of the given domain pointing at the mock controller
func (e *TestEnv) AddEntry(ctx context.Context, domain string) (*cover.Platform, error) {
	entry := integration.Entry{
		ID:     fmt.Sprintf("%s_test", domain),
		Domain: domain,
		Host:   e.Server.URL(),
	}
	if _, err := e.Manager.SetupEntry(ctx, entry); err != nil {
		return nil, err
	}

	platform, ok := e.Manager.Platform(entry.ID)
	if !ok {
		return nil, fmt.Errorf("entry %s was not loaded", entry.ID)
	}
	return platform, nil
}

// PluginContext returns a plugin context over the environment's bridges
func (e *TestEnv) PluginContext() *plugin.Context {
	ctx := plugin.NewContext(e.Covers, plugin.StaticConfig{Config: e.Config}, e.Clock, e.Logger)
	ctx.HAClient = e.HA
	ctx.StateWriter = e.States
	ctx.MQTT = e.MQTT
	return ctx
}

// Cleanup unloads every entry and stops the mock controller.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	e.Manager.UnloadAll()
	e.Server.Close()
}

// GetServiceCalls returns the service calls made to Home Assistant
func (e *TestEnv) GetServiceCalls() []ha.RecordedCall {
	return e.HA.GetServiceCalls()
}

// ClearServiceCalls clears the recorded service calls
func (e *TestEnv) ClearServiceCalls() {
	e.HA.ClearServiceCalls()
}
