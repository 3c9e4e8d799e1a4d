// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNoCollector is returned by NewClientFromEnv when the hook was not
// started under a collector.
var ErrNoCollector = errors.New("collector environment not set")

type (
	// Client talks to a Server on behalf of an exec hook. Every request is
	// bounded by the client timeout on top of the caller's context.
	Client struct {
		baseURL string
		token   string
		timeout time.Duration
		http    *http.Client
	}

	// ClientOption configures a Client.
	ClientOption func(*Client)

	// StatusError reports a non-success HTTP response.
	StatusError struct {
		Code    int
		Message string
	}
)

// WithTimeout sets the per-request deadline. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the collector at baseURL.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		timeout: DefaultTimeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromEnv creates a client from EnvURL and EnvToken. EnvSettingsTimeout
// overrides the timeout when it parses as a duration.
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	baseURL := os.Getenv(EnvURL)
	token := os.Getenv(EnvToken)
	if baseURL == "" || token == "" {
		return nil, ErrNoCollector
	}

	if raw := os.Getenv(EnvSettingsTimeout); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			opts = append([]ClientOption{WithTimeout(d)}, opts...)
		}
	}
	return NewClient(baseURL, token, opts...), nil
}

// Timeout returns the per-request deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// FetchSettings returns the collector's current settings.
func (c *Client) FetchSettings(ctx context.Context) (Settings, error) {
	var settings Settings
	if err := c.do(ctx, http.MethodGet, settingsPath, nil, &settings); err != nil {
		return Settings{}, fmt.Errorf("fetch settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("fetch settings: %w", err)
	}
	return settings, nil
}

// Report sends r and returns the ID the collector assigned. Callers treat
// failures as warnings: a lost report never fails a build.
func (c *Client) Report(ctx context.Context, r Report) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	var receipt reportReceipt
	if err := c.do(ctx, http.MethodPost, reportsPath, body, &receipt); err != nil {
		return "", fmt.Errorf("send report: %w", err)
	}
	return receipt.ID, nil
}

// Healthy reports whether the collector answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, http.NoBody)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func newStatusError(code int, body []byte) *StatusError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{Code: code, Message: msg}
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("collector returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}
