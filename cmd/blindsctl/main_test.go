package main

import (
	"bytes"
	"testing"

	"blindscontrol/internal/controller"
	"blindscontrol/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevice = controller.DeviceConfig{
	1: {GPIO: 12, Open: 180, Close: 20},
	2: {GPIO: 13, Open: 20, Close: 180},
	3: {GPIO: 14, Open: 50, Close: 50},
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newServer(t *testing.T) *testutil.MockControllerServer {
	t.Helper()
	server := testutil.NewMockControllerServer(testDevice)
	t.Cleanup(server.Close)
	return server
}

func TestConfigCommand(t *testing.T) {
	server := newServer(t)

	out, err := run(t, "--host", server.URL(), "config")
	require.NoError(t, err)
	assert.Contains(t, out, "normal")
	assert.Contains(t, out, "reversed")
	assert.Contains(t, out, "invalid")
}

func TestOpenCloseStop(t *testing.T) {
	server := newServer(t)

	_, err := run(t, "--host", server.URL(), "open", "1")
	require.NoError(t, err)
	raw, _ := server.Raw(1)
	assert.Equal(t, 180, raw)

	_, err = run(t, "--host", server.URL(), "close", "2")
	require.NoError(t, err)
	raw, _ = server.Raw(2)
	assert.Equal(t, 180, raw)

	out, err := run(t, "--host", server.URL(), "stop", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped")
	assert.Contains(t, server.Requests(), "/blind/2/temp/end")
}

func TestSetCommand(t *testing.T) {
	server := newServer(t)

	out, err := run(t, "--host", server.URL(), "set", "2", "25")
	require.NoError(t, err)
	raw, _ := server.Raw(2)
	assert.Equal(t, 140, raw)
	assert.Contains(t, out, "raw 140")

	_, err = run(t, "--host", server.URL(), "set", "1", "150")
	require.NoError(t, err)
	raw, _ = server.Raw(1)
	assert.Equal(t, 180, raw)

	_, err = run(t, "--host", server.URL(), "set", "1", "50", "--open", "100", "--close", "0")
	require.NoError(t, err)
	raw, _ = server.Raw(1)
	assert.Equal(t, 50, raw)
}

func TestNegativeArguments(t *testing.T) {
	server := newServer(t)

	_, err := run(t, "--host", server.URL(), "set", "1", "-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown shorthand flag")

	out, err := run(t, "--host", server.URL(), "set", "1", "--", "-5")
	require.NoError(t, err)
	raw, _ := server.Raw(1)
	assert.Equal(t, 20, raw)
	assert.Contains(t, out, "moved to 0%")

	out, err = run(t, "map", "--open", "20", "--close", "180", "--", "-5")
	require.NoError(t, err)
	assert.Contains(t, out, "raw 180")
}

func TestSetCommandErrors(t *testing.T) {
	server := newServer(t)

	_, err := run(t, "--host", server.URL(), "set", "3", "50")
	assert.Error(t, err, "degenerate calibration")

	_, err = run(t, "--host", server.URL(), "set", "9", "50")
	assert.Error(t, err, "unknown blind")

	_, err = run(t, "--host", server.URL(), "set", "1", "half")
	assert.Error(t, err)

	server.Reject(1, "motor jammed")
	_, err = run(t, "--host", server.URL(), "set", "1", "50")
	assert.ErrorIs(t, err, controller.ErrCommandRejected)

	server.SetDown(true)
	_, err = run(t, "--host", server.URL(), "open", "1")
	assert.ErrorIs(t, err, controller.ErrUnreachable)
}

func TestPositionCommand(t *testing.T) {
	server := newServer(t)

	out, err := run(t, "--host", server.URL(), "position", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "unknown")

	server.SetRaw(1, 100)
	out, err = run(t, "--host", server.URL(), "position", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "50%")

	server.SetRaw(2, 180)
	out, err = run(t, "--host", server.URL(), "position", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "(closed)")
}

func TestMapCommand(t *testing.T) {
	out, err := run(t, "map", "25", "--open", "20", "--close", "180")
	require.NoError(t, err)
	assert.Contains(t, out, "raw 140")

	out, err = run(t, "map", "140", "--open", "20", "--close", "180", "-r")
	require.NoError(t, err)
	assert.Contains(t, out, "= 25%")

	_, err = run(t, "map", "25", "--open", "20")
	assert.Error(t, err)

	_, err = run(t, "map", "25", "--open", "20", "--close", "20")
	assert.Error(t, err)
}
