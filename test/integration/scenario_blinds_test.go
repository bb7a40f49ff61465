// Package integration runs the bridges, the sun schedule and the API together
// against an emulated blind controller.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blindscontrol/internal/api"
	"blindscontrol/internal/config"
	"blindscontrol/internal/controller"
	"blindscontrol/internal/ha"
	"blindscontrol/internal/integration"
	"blindscontrol/internal/plugins/habridge"
	"blindscontrol/internal/plugins/sunschedule"
	"blindscontrol/pkg/plugin"
	"blindscontrol/pkg/testutil"

	_ "blindscontrol/internal/plugins/mqttbridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var device = controller.DeviceConfig{
	1: {GPIO: 12, Open: 180, Close: 20},
	2: {GPIO: 13, Open: 20, Close: 180},
}

type scenario struct {
	env     *testutil.TestEnv
	plugins []plugin.Plugin
	sun     *sunschedule.Manager
	api     *httptest.Server
}

// Austin, TX
func sunScheduleConfig() config.SunScheduleConfig {
	return config.SunScheduleConfig{Enabled: true, Latitude: 30.2672, Longitude: -97.7431}
}

func setupScenario(t *testing.T) *scenario {
	t.Helper()
	env := testutil.NewTestEnv(device)
	t.Cleanup(env.Cleanup)

	env.Config.HomeAssistant.Enabled = true
	env.Config.MQTT.Enabled = true
	env.Config.SunSchedule = sunScheduleConfig()

	_, err := env.AddEntry(context.Background(), integration.DomainBlindsControl)
	require.NoError(t, err)

	plugins, err := plugin.CreateAll(env.PluginContext())
	require.NoError(t, err)
	require.NoError(t, plugin.StartAll(plugins))
	t.Cleanup(func() { plugin.StopAll(plugins) })

	var sun *sunschedule.Manager
	for _, p := range plugins {
		if s, ok := p.(interface{ Manager() *sunschedule.Manager }); ok {
			sun = s.Manager()
		}
	}
	require.NotNil(t, sun)

	server := httptest.NewServer(api.NewServer(env.Covers, env.Manager, sun, env.Logger, 0).Handler())
	t.Cleanup(server.Close)

	return &scenario{env: env, plugins: plugins, sun: sun, api: server}
}

func (s *scenario) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(s.api.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestScenario_AllPluginsStart(t *testing.T) {
	s := setupScenario(t)

	names := make([]string, 0, len(s.plugins))
	for _, p := range s.plugins {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"habridge", "mqttbridge", "sunschedule"}, names)

	assert.Equal(t, 1, s.env.HA.SubscriberCount(habridge.EntityDomain))
	assert.True(t, s.env.MQTT.HasSubscription("blinds/+/set"))
	assert.True(t, s.env.MQTT.HasSubscription("blinds/+/set_position"))
}

func TestScenario_APICommandReachesEveryBridge(t *testing.T) {
	s := setupScenario(t)

	resp := s.post(t, "/api/covers/blinds_control_1/position", `{"position": 50}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := s.env.Server.Raw(1)
	assert.Equal(t, 100, raw)

	state, ok := s.env.States.State("cover.blinds_control_1")
	require.True(t, ok)
	assert.Equal(t, "open", state.State)
	assert.Equal(t, 50, state.Attributes["current_position"])

	msg, ok := s.env.MQTT.Last("blinds/blinds_control_1/position")
	require.True(t, ok)
	assert.Equal(t, "50", msg.Payload)
	assert.True(t, msg.Retained)
}

func TestScenario_MQTTCommandMirroredToHomeAssistant(t *testing.T) {
	s := setupScenario(t)

	require.NoError(t, s.env.MQTT.Deliver("blinds/blinds_control_2/set", []byte("CLOSE")))

	raw, _ := s.env.Server.Raw(2)
	assert.Equal(t, 180, raw)
	state, _ := s.env.States.State("cover.blinds_control_2")
	assert.Equal(t, "closed", state.State)
}

func TestScenario_HomeAssistantCommandMirroredToMQTT(t *testing.T) {
	s := setupScenario(t)

	s.env.HA.SimulateServiceCall(ha.ServiceCall{
		Domain:      habridge.EntityDomain,
		Service:     habridge.ServiceOpen,
		ServiceData: map[string]interface{}{"entity_id": "cover.blinds_control_1"},
	})

	msg, ok := s.env.MQTT.Last("blinds/blinds_control_1/position")
	require.True(t, ok)
	assert.Equal(t, "100", msg.Payload)
}

func TestScenario_ControllerOutage(t *testing.T) {
	s := setupScenario(t)
	s.env.Server.SetDown(true)

	resp := s.post(t, "/api/covers/blinds_control_1/open", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	msg, ok := s.env.MQTT.Last("blinds/blinds_control_1/availability")
	require.True(t, ok)
	assert.Equal(t, "unavailable", msg.Payload)

	calls := testutil.FilterServiceCalls(s.env.GetServiceCalls(), "persistent_notification", "create")
	assert.Len(t, calls, 1)

	s.env.Server.SetDown(false)
	resp = s.post(t, "/api/covers/blinds_control_1/open", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	msg, _ = s.env.MQTT.Last("blinds/blinds_control_1/availability")
	assert.Equal(t, "available", msg.Payload)
	calls = testutil.FilterServiceCalls(s.env.GetServiceCalls(), "persistent_notification", "dismiss")
	assert.Len(t, calls, 1)
}

func TestScenario_SunsetClosesEverything(t *testing.T) {
	s := setupScenario(t)
	require.NoError(t, s.post(t, "/api/covers/blinds_control_1/open", "").Body.Close())
	require.NoError(t, s.post(t, "/api/covers/blinds_control_2/open", "").Body.Close())

	sunset, ok := s.sun.Next()
	require.True(t, ok)
	s.env.Clock.Set(sunset.At)

	for _, id := range []string{"cover.blinds_control_1", "cover.blinds_control_2"} {
		state, _ := s.env.States.State(id)
		assert.Equal(t, "closed", state.State, id)
	}
}

func TestScenario_UnloadEntryRemovesCovers(t *testing.T) {
	s := setupScenario(t)

	req, err := http.NewRequest(http.MethodDelete, s.api.URL+"/api/entries/blinds_control_test", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.post(t, "/api/covers/blinds_control_1/open", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
