package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mixstudio/mixdeck/internal/logging"
)

// DefaultRequestTimeout bounds control-plane requests to the worker.
// The worker can take a while to answer a prompt, so this is generous
// but still finite.
const DefaultRequestTimeout = 120 * time.Second

// ControlClient issues HTTP requests against the worker's control
// surface. Every call is gated on the supervisor reporting a live
// worker: with no worker running the call fails fast with
// ErrCodeNotRunning and no network I/O happens.
type ControlClient struct {
	baseURL    string
	httpClient *http.Client
	running    func() bool
	logger     logging.Logger
}

// ClientOption configures a ControlClient.
type ClientOption func(*ControlClient)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *ControlClient) {
		c.httpClient.Timeout = d
	}
}

// WithClientLogger sets the logger for control requests.
func WithClientLogger(logger logging.Logger) ClientOption {
	return func(c *ControlClient) {
		c.logger = logger
	}
}

// NewControlClient creates a client for the worker listening at baseURL.
// The running func is consulted before every request, typically the
// supervisor's IsRunning method.
func NewControlClient(baseURL string, running func() bool, opts ...ClientOption) *ControlClient {
	c := &ControlClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
		running:    running,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// healthResponse is the worker's health endpoint payload.
type healthResponse struct {
	Status string `json:"status"`
}

// HealthCheck issues a GET against the worker's health endpoint and
// returns a human-readable summary of the reported status.
func (c *ControlClient) HealthCheck(ctx context.Context) (string, error) {
	if !c.running() {
		return "", ErrNotRunning
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return "", newError(ErrCodeNetwork, "failed to build health request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newError(ErrCodeNetwork, "health request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(ErrCodeProtocol,
			fmt.Sprintf("health endpoint returned status %d", resp.StatusCode), nil)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return "", newError(ErrCodeProtocol, "failed to decode health response", err)
	}

	if health.Status != "" {
		return fmt.Sprintf("worker health check: %s", health.Status), nil
	}
	return "worker health check successful", nil
}

// promptRequest is the body sent to the worker's prompt endpoint.
type promptRequest struct {
	Prompt string `json:"prompt"`
}

// SendPrompt posts a prompt to the worker and returns the raw text
// body of a successful response verbatim.
func (c *ControlClient) SendPrompt(ctx context.Context, prompt string) (string, error) {
	if !c.running() {
		return "", ErrNotRunning
	}

	payload, err := json.Marshal(promptRequest{Prompt: prompt})
	if err != nil {
		return "", newError(ErrCodeNetwork, "failed to encode prompt", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", newError(ErrCodeNetwork, "failed to build prompt request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", newError(ErrCodeNetwork, "prompt request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newError(ErrCodeProtocol,
			fmt.Sprintf("prompt endpoint returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(ErrCodeNetwork, "failed to read prompt response", err)
	}
	return string(body), nil
}

// Probe issues a bare health request without the running gate.
// It is used as the supervisor's readiness check, where the handle is
// installed but the worker may not be listening yet.
func (c *ControlClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
