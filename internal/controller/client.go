// Package controller talks to the blind controller's HTTP API.
//
// Every operation is a single GET. Replies are JSON; a reply that decodes but reports
// failure becomes a *CommandError, anything that prevents a decoded reply wraps
// ErrUnreachable or ErrInvalidResponse. There are no retries.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request to the controller
const DefaultTimeout = 10 * time.Second

// Config describes how to reach a controller
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// BaseURL builds the root URL. A host that already carries a scheme is used verbatim.
func (c Config) BaseURL() string {
	if strings.Contains(c.Host, "://") {
		return strings.TrimRight(c.Host, "/")
	}
	port := c.Port
	if port == 0 {
		port = 80
	}
	return fmt.Sprintf("http://%s:%d", c.Host, port)
}

// Client is an HTTP client for one blind controller
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a controller client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	baseURL := cfg.BaseURL()

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		logger:  logger.Named("controller").With(zap.String("base_url", baseURL)),
	}
}

// BaseURL returns the controller root URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DownloadConfig fetches the per-blind GPIO and calibration table
func (c *Client) DownloadConfig(ctx context.Context) (DeviceConfig, error) {
	body, err := c.get(ctx, "/download_config")
	if err != nil {
		return nil, err
	}

	var cfg DeviceConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%w: download_config: %w", ErrInvalidResponse, err)
	}

	c.logger.Debug("Downloaded controller config", zap.Int("blinds", len(cfg)))
	return cfg, nil
}

// Open drives the blind to its open limit
func (c *Client) Open(ctx context.Context, id int) (Result, error) {
	return c.command(ctx, id, "open", blindPath(id, "open"))
}

// Close drives the blind to its closed limit
func (c *Client) Close(ctx context.Context, id int) (Result, error) {
	return c.command(ctx, id, "close", blindPath(id, "close"))
}

// MoveTo drives the blind to a raw actuator coordinate
func (c *Client) MoveTo(ctx context.Context, id, raw int) (Result, error) {
	return c.command(ctx, id, "move", blindPath(id, "temp/"+strconv.Itoa(raw)))
}

// Stop halts a moving blind. The controller answers with a status code only.
func (c *Client) Stop(ctx context.Context, id int) error {
	_, err := c.get(ctx, blindPath(id, "temp/end"))
	return err
}

// Position reads the blind's current raw coordinate. A null coordinate yields a
// Result without a position.
func (c *Client) Position(ctx context.Context, id int) (Result, error) {
	body, err := c.get(ctx, blindPath(id, "position"))
	if err != nil {
		return Result{}, err
	}

	var resp commandResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: blind %d position: %w", ErrInvalidResponse, id, err)
	}
	if resp.Error != "" {
		return Result{}, &CommandError{BlindID: id, Op: "position", Reason: resp.Error}
	}

	return Result{Position: resp.CurrentPosition}, nil
}

// command runs an action endpoint that answers {success, actual_position?, error?}
func (c *Client) command(ctx context.Context, id int, op, path string) (Result, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return Result{}, err
	}

	var resp commandResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: blind %d %s: %w", ErrInvalidResponse, id, op, err)
	}

	if resp.Success == nil || !*resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "controller reported failure"
		}
		return Result{}, &CommandError{BlindID: id, Op: op, Reason: reason}
	}

	return Result{Position: resp.ActualPosition}, nil
}

// get performs a GET and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	c.logger.Debug("Sending request", zap.String("path", path))

	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrUnreachable, path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrUnreachable, path, resp.StatusCode())
	}

	return resp.Body(), nil
}

func blindPath(id int, action string) string {
	return fmt.Sprintf("/blind/%d/%s", id, action)
}
