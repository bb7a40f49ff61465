package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeController serves canned bodies keyed by request path
func fakeController(t *testing.T, routes map[string]string) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path)
		mu.Unlock()
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(Config{Host: server.URL, Timeout: time.Second}, zap.NewNop())
}

func TestConfig_BaseURL(t *testing.T) {
	assert.Equal(t, "http://blinds.local:8080", Config{Host: "blinds.local", Port: 8080}.BaseURL())
	assert.Equal(t, "http://localhost:80", Config{Host: "localhost"}.BaseURL())
	assert.Equal(t, "http://10.0.0.5:81", Config{Host: "http://10.0.0.5:81/", Port: 9}.BaseURL())
}

func TestClient_DownloadConfig(t *testing.T) {
	server, _ := fakeController(t, map[string]string{
		"/download_config": `{"1": {"gpio": 12, "open": 180, "close": 20}, "14": {"gpio": 5, "open": 20, "close": 180}}`,
	})
	client := newTestClient(server)

	cfg, err := client.DownloadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 14}, cfg.IDs())
	assert.Equal(t, BlindConfig{GPIO: 12, Open: 180, Close: 20}, cfg[1])

	cal, err := cfg[14].Calibration()
	require.NoError(t, err)
	assert.True(t, cal.Reversed())
}

func TestClient_DownloadConfigInvalid(t *testing.T) {
	server, _ := fakeController(t, map[string]string{"/download_config": `not json`})
	client := newTestClient(server)

	_, err := client.DownloadConfig(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClient_Commands(t *testing.T) {
	server, seen := fakeController(t, map[string]string{
		"/blind/3/open":     `{"success": true}`,
		"/blind/3/close":    `{"success": false, "error": "motor stalled"}`,
		"/blind/3/temp/100": `{"success": true, "actual_position": 98}`,
		"/blind/4/temp/100": `{"success": true}`,
		"/blind/5/open":     `{}`,
	})
	client := newTestClient(server)
	ctx := context.Background()

	t.Run("open succeeds", func(t *testing.T) {
		res, err := client.Open(ctx, 3)
		require.NoError(t, err)
		assert.False(t, res.HasPosition())
	})

	t.Run("close rejected", func(t *testing.T) {
		_, err := client.Close(ctx, 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCommandRejected)

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, 3, cmdErr.BlindID)
		assert.Equal(t, "close", cmdErr.Op)
		assert.Equal(t, "motor stalled", cmdErr.Reason)
	})

	t.Run("move reports actual position", func(t *testing.T) {
		res, err := client.MoveTo(ctx, 3, 100)
		require.NoError(t, err)
		require.True(t, res.HasPosition())
		assert.Equal(t, 98, *res.Position)
	})

	t.Run("move without actual position", func(t *testing.T) {
		res, err := client.MoveTo(ctx, 4, 100)
		require.NoError(t, err)
		assert.False(t, res.HasPosition())
	})

	t.Run("missing success flag is a rejection", func(t *testing.T) {
		_, err := client.Open(ctx, 5)
		assert.ErrorIs(t, err, ErrCommandRejected)
		assert.Contains(t, err.Error(), "controller reported failure")
	})

	assert.Contains(t, seen(), "/blind/3/temp/100")
}

func TestClient_Stop(t *testing.T) {
	server, seen := fakeController(t, map[string]string{"/blind/2/temp/end": ``})
	client := newTestClient(server)

	require.NoError(t, client.Stop(context.Background(), 2))
	assert.Equal(t, []string{"/blind/2/temp/end"}, seen())

	err := client.Stop(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_Position(t *testing.T) {
	server, _ := fakeController(t, map[string]string{
		"/blind/1/position": `{"current_position": 140}`,
		"/blind/2/position": `{"current_position": null}`,
		"/blind/3/position": `{"current_position": null, "error": "unknown blind"}`,
		"/blind/4/position": `<html>`,
	})
	client := newTestClient(server)
	ctx := context.Background()

	res, err := client.Position(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.HasPosition())
	assert.Equal(t, 140, *res.Position)

	res, err = client.Position(ctx, 2)
	require.NoError(t, err)
	assert.False(t, res.HasPosition())

	_, err = client.Position(ctx, 3)
	assert.ErrorIs(t, err, ErrCommandRejected)

	_, err = client.Position(ctx, 4)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{Host: url, Timeout: 200 * time.Millisecond}, zap.NewNop())
	_, err := client.Open(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Position(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "status 500")
}
