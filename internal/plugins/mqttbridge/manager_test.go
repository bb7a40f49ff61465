package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"blindscontrol/internal/controller"
	"blindscontrol/internal/cover"
	"blindscontrol/internal/integration"
	"blindscontrol/internal/mqtt"
	"blindscontrol/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevice = controller.DeviceConfig{
	1: {GPIO: 12, Open: 180, Close: 20},
	2: {GPIO: 13, Open: 20, Close: 180},
}

func setup(t *testing.T) (*testutil.TestEnv, *Manager) {
	t.Helper()
	env := testutil.NewTestEnv(testDevice)
	t.Cleanup(env.Cleanup)

	_, err := env.AddEntry(context.Background(), integration.DomainBlindsControl)
	require.NoError(t, err)

	m := NewManager(env.Covers, env.MQTT, env.Logger)
	require.NoError(t, m.Start())
	t.Cleanup(m.Stop)
	return env, m
}

func lastPayload(t *testing.T, env *testutil.TestEnv, topic string) mqtt.Published {
	t.Helper()
	msg, ok := env.MQTT.Last(topic)
	require.True(t, ok, "nothing published on %s", topic)
	return msg
}

func TestManager_StartPublishesState(t *testing.T) {
	env, _ := setup(t)

	assert.True(t, env.MQTT.HasSubscription("blinds/+/set"))
	assert.True(t, env.MQTT.HasSubscription("blinds/+/set_position"))

	msg := lastPayload(t, env, "blinds/blinds_control_1/state")
	assert.True(t, msg.Retained)

	var state map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &state))
	assert.Equal(t, "blinds_control_1", state["unique_id"])
	assert.Equal(t, "unknown", state["availability"])
	assert.Equal(t, "Living Room Left", state["name"])

	assert.Equal(t, "0", lastPayload(t, env, "blinds/blinds_control_1/position").Payload)
	assert.Equal(t, "unknown", lastPayload(t, env, "blinds/blinds_control_2/availability").Payload)
}

func TestManager_SetCommands(t *testing.T) {
	tests := []struct {
		payload string
		wantRaw int
		wantPos string
	}{
		{"OPEN", 180, "100"},
		{"close", 20, "0"},
		{" Open ", 180, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			env, _ := setup(t)

			require.NoError(t, env.MQTT.Deliver("blinds/blinds_control_1/set", []byte(tt.payload)))

			raw, ok := env.Server.Raw(1)
			require.True(t, ok)
			assert.Equal(t, tt.wantRaw, raw)
			assert.Equal(t, tt.wantPos, lastPayload(t, env, "blinds/blinds_control_1/position").Payload)
			assert.Equal(t, "available", lastPayload(t, env, "blinds/blinds_control_1/availability").Payload)
		})
	}
}

func TestManager_StopCommand(t *testing.T) {
	env, _ := setup(t)
	require.NoError(t, env.MQTT.Deliver("blinds/blinds_control_1/set", []byte("STOP")))
	assert.Contains(t, env.Server.Requests(), "/blind/1/temp/end")
}

func TestManager_SetPosition(t *testing.T) {
	env, _ := setup(t)

	require.NoError(t, env.MQTT.Deliver("blinds/blinds_control_2/set_position", []byte("25")))

	raw, _ := env.Server.Raw(2)
	assert.Equal(t, 140, raw)
	assert.Equal(t, "25", lastPayload(t, env, "blinds/blinds_control_2/position").Payload)

	// out of range input is clamped
	require.NoError(t, env.MQTT.Deliver("blinds/blinds_control_2/set_position", []byte("150")))
	raw, _ = env.Server.Raw(2)
	assert.Equal(t, 20, raw)
}

func TestManager_InvalidCommands(t *testing.T) {
	env, _ := setup(t)
	before := len(env.Server.Requests())

	err := env.MQTT.Deliver("blinds/blinds_control_1/set", []byte("TOGGLE"))
	assert.ErrorIs(t, err, cover.ErrUnknownCommand)

	err = env.MQTT.Deliver("blinds/blinds_control_1/set", []byte("set_position"))
	assert.ErrorIs(t, err, cover.ErrUnknownCommand)

	err = env.MQTT.Deliver("blinds/blinds_control_1/set_position", []byte("half"))
	assert.Error(t, err)

	err = env.MQTT.Deliver("blinds/boldt_blinds_9/set", []byte("OPEN"))
	assert.ErrorIs(t, err, cover.ErrUnknownCover)

	assert.Len(t, env.Server.Requests(), before)
}

func TestManager_PublishFailure(t *testing.T) {
	env, m := setup(t)
	env.MQTT.Fail(errors.New("broker gone"))

	err := m.Publish(cover.State{UniqueID: "blinds_control_1"})
	assert.Error(t, err)
}

func TestManager_StopUnsubscribes(t *testing.T) {
	env, m := setup(t)
	m.Stop()

	assert.False(t, env.MQTT.HasSubscription("blinds/+/set"))
	assert.False(t, env.MQTT.HasSubscription("blinds/+/set_position"))

	before := len(env.MQTT.Published())
	c, err := env.Covers.Get("blinds_control_1")
	require.NoError(t, err)
	require.NoError(t, c.Open(context.Background()))
	assert.Len(t, env.MQTT.Published(), before)
}

func TestCreatePlugin(t *testing.T) {
	env := testutil.NewTestEnv(testDevice)
	defer env.Cleanup()

	ctx := env.PluginContext()
	p, err := createPlugin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mqttbridge", p.Name())

	ctx.MQTT = nil
	_, err = createPlugin(ctx)
	assert.Error(t, err)
}
