// Package restreamer is an HTTP client for the Restreamer engine's REST API.
// It handles JWT login, token refresh and the process/output endpoints the
// unit manager drives.
package restreamer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/smazurov/multistream/internal/logging"
)

const (
	maxLoginRetries     = 3
	initialLoginBackoff = time.Second
)

// Client talks to a single Restreamer engine. It is safe for concurrent use;
// token state is guarded internally.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	tokenExpires  time.Time
	loginFailures int
	loginBackoff  time.Duration
	lastLoginAt   time.Time

	// Availability monitoring
	monitorTicker *time.Ticker
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewClient creates a client for the engine described by cfg.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:      cfg.BaseURL(),
		username:     cfg.Username,
		password:     cfg.Password,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		logger:       logging.GetLogger("restreamer"),
		loginBackoff: initialLoginBackoff,
		stopChan:     make(chan struct{}),
	}
}

// login authenticates against /api/login and stores the returned tokens.
// Callers must hold c.mu.
func (c *Client) login(ctx context.Context) error {
	if c.loginFailures > 0 && time.Since(c.lastLoginAt) < c.loginBackoff {
		remaining := c.loginBackoff - time.Since(c.lastLoginAt)
		return fmt.Errorf("login throttled, retry in %s", remaining.Round(time.Second))
	}

	data, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/login", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordLoginFailure(0)
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.recordLoginFailure(resp.StatusCode)
		return fmt.Errorf("login failed, status: %d", resp.StatusCode)
	}

	var tokens loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if tokens.AccessToken == "" {
		return fmt.Errorf("no access token in login response")
	}

	c.accessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		c.refreshToken = tokens.RefreshToken
	}
	if tokens.ExpiresAt > 0 {
		c.tokenExpires = time.Unix(tokens.ExpiresAt, 0)
	} else {
		c.tokenExpires = time.Now().Add(time.Hour)
	}

	c.loginFailures = 0
	c.loginBackoff = initialLoginBackoff
	c.logger.Info("Logged in to engine", "url", c.baseURL)
	return nil
}

// recordLoginFailure tracks consecutive failures and doubles the backoff
// window until maxLoginRetries is reached.
func (c *Client) recordLoginFailure(status int) {
	c.loginFailures++
	c.lastLoginAt = time.Now()

	if c.loginFailures < maxLoginRetries {
		c.loginBackoff *= 2
		c.logger.Warn("Engine login failed",
			"status", status,
			"attempt", c.loginFailures,
			"max", maxLoginRetries,
			"backoff", c.loginBackoff)
	} else {
		c.logger.Error("Engine login failed repeatedly", "attempts", c.loginFailures)
	}
}

// token returns a valid access token, logging in first when the cached one
// is missing or expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken == "" || !time.Now().Before(c.tokenExpires) {
		if err := c.login(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

// invalidateToken drops the cached token so the next request re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// doRequest performs an authenticated request against the engine. A nil out
// skips response decoding. On 401 the token is refreshed and the request
// retried once.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, out any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}

		var reader io.Reader
		if data != nil {
			reader = bytes.NewReader(data)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s failed: %w", method, endpoint, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.invalidateToken()
			continue
		}

		err = decodeResponse(resp, method, endpoint, out)
		resp.Body.Close()
		return err
	}
}

func decodeResponse(resp *http.Response, method, endpoint string, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed, status: %d", method, endpoint, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// Ping checks that the engine answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed, status: %d", resp.StatusCode)
	}

	var pong string
	if err := json.NewDecoder(resp.Body).Decode(&pong); err != nil {
		return fmt.Errorf("failed to decode ping response: %w", err)
	}
	if pong != "pong" {
		return fmt.Errorf("unexpected ping response: %q", pong)
	}
	return nil
}

// GetInfo returns the engine's build information.
func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.doRequest(ctx, http.MethodGet, "/api", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
