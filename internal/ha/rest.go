package ha

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// EntityState is the body of POST /api/states/<entity_id>
type EntityState struct {
	State      string                 `json:"state"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// StateSetter writes entity states; StateWriter and MockStateWriter implement it
type StateSetter interface {
	SetState(ctx context.Context, entityID string, state EntityState) error
}

// StateWriter mirrors entity states into Home Assistant over its REST API
type StateWriter struct {
	http   *resty.Client
	logger *zap.Logger
}

// RESTBaseURL derives the REST root from a WebSocket URL such as
// ws://homeassistant.local:8123/api/websocket
func RESTBaseURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse Home Assistant URL: %w", err)
	}

	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported Home Assistant URL scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api/websocket")
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

// NewStateWriter creates a writer authenticated with a long-lived access token
func NewStateWriter(baseURL, token string, timeout time.Duration, logger *zap.Logger) *StateWriter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")

	return &StateWriter{
		http:   client,
		logger: logger.Named("ha.rest"),
	}
}

// SetState creates or replaces an entity's state
func (w *StateWriter) SetState(ctx context.Context, entityID string, state EntityState) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetPathParam("entity_id", entityID).
		SetBody(state).
		Post("/api/states/{entity_id}")
	if err != nil {
		return fmt.Errorf("failed to post state for %s: %w", entityID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to post state for %s: status %d: %s", entityID, resp.StatusCode(), resp.String())
	}

	w.logger.Debug("State written",
		zap.String("entity_id", entityID),
		zap.String("state", state.State))
	return nil
}
