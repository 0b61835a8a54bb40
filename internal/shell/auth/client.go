// Package auth implements the browser-confirmed action token flow used to
// obtain a short-lived credential for the pages service.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/artpar/pagepub/internal/core/domain"
)

// Client requests action tokens and polls for their resolution.
type Client struct {
	baseURL          string
	userAgent        string
	pollInterval     time.Duration
	timeoutIntervals int
	clock            Clock
	httpClient       *http.Client
	logger           *slog.Logger
}

// Config holds action token client configuration.
type Config struct {
	BaseURL          string        // API base URL, e.g., "https://api.wonderlandengine.com"
	UserAgent        string        // Sent on every request, e.g., "WonderlandEditor/1.2.3"
	PollInterval     time.Duration // Time between result polls
	TimeoutIntervals int           // Maximum number of polls before giving up
	Timeout          time.Duration // Per-request HTTP timeout
	Clock            Clock
}

// DefaultConfig returns the default polling configuration: a poll every
// 5 seconds for at most 60 seconds.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "https://api.wonderlandengine.com",
		PollInterval:     5 * time.Second,
		TimeoutIntervals: 12,
		Timeout:          30 * time.Second,
	}
}

// NewClient creates a new action token client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.TimeoutIntervals == 0 {
		cfg.TimeoutIntervals = defaults.TimeoutIntervals
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:        cfg.UserAgent,
		pollInterval:     cfg.PollInterval,
		timeoutIntervals: cfg.TimeoutIntervals,
		clock:            cfg.Clock,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "auth"),
	}
}

// =============================================================================
// Token Creation
// =============================================================================

// createTokenRequest is the body of the action creation request.
type createTokenRequest struct {
	Action     string                 `json:"action"`
	Parameters createTokenRequestArgs `json:"parameters"`
}

type createTokenRequestArgs struct {
	ProjectName string `json:"projectName"`
}

// CreateToken asks the service for a new pending action. The display name
// is shown to the user on the confirmation page.
func (c *Client) CreateToken(ctx context.Context, displayName string) (domain.ActionToken, error) {
	body, err := json.Marshal(createTokenRequest{
		Action:     "createToken",
		Parameters: createTokenRequestArgs{ProjectName: displayName},
	})
	if err != nil {
		return "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/action", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NetworkError("create token", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NetworkError("read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewServiceError("create token", resp.StatusCode, string(respBody))
	}

	token := strings.TrimSpace(string(respBody))
	if token == "" {
		return "", domain.NewServiceError("create token", resp.StatusCode, "empty token")
	}

	c.logger.Debug("created action token", "project_name", displayName)
	return domain.ActionToken(token), nil
}

// =============================================================================
// Polling
// =============================================================================

// Canceller reports cooperative cancellation. *CancelFlag implements it.
type Canceller interface {
	Cancelled() bool
}

// PollUntilResolved waits for the user to confirm the action.
//
// Each tick sleeps for the poll interval, checks cancel, then issues one
// result request. It returns:
//   - the credential once the response carries one
//   - domain.ErrCancelled at the first tick after cancel was set, without a request
//   - domain.ErrTimeout after TimeoutIntervals unresolved polls
//   - a network or service error if a poll request fails
//
// A request already in flight when cancel is set runs to completion. No
// timers or goroutines outlive the call.
func (c *Client) PollUntilResolved(ctx context.Context, token domain.ActionToken, cancel Canceller) (domain.Credential, error) {
	for tick := 1; tick <= c.timeoutIntervals; tick++ {
		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			return "", fmt.Errorf("poll action: %w", err)
		}

		if cancel != nil && cancel.Cancelled() {
			c.logger.Info("action cancelled", "tick", tick)
			return "", domain.ErrCancelled
		}

		credential, err := c.pollOnce(ctx, token)
		if err != nil {
			return "", err
		}
		if credential != "" {
			c.logger.Info("action confirmed", "tick", tick)
			return credential, nil
		}

		c.logger.Debug("action pending", "tick", tick, "max_ticks", c.timeoutIntervals)
	}

	c.logger.Info("action timed out", "ticks", c.timeoutIntervals)
	return "", domain.ErrTimeout
}

// pollOnce fetches the action result. An empty credential means pending.
func (c *Client) pollOnce(ctx context.Context, token domain.ActionToken) (domain.Credential, error) {
	endpoint := c.baseURL + "/auth/action/" + url.PathEscape(string(token)) + "/result"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.NetworkError("poll action", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NetworkError("read action result", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewServiceError("poll action", resp.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return "", domain.NewServiceError("poll action", resp.StatusCode, "malformed result: "+string(body))
	}

	result := gjson.GetBytes(body, "token")
	if result.Type != gjson.String || result.Str == "" {
		return "", nil
	}
	return domain.Credential(result.Str), nil
}

// =============================================================================
// Helper Methods
// =============================================================================

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// AuthorizeURL returns the page where the user confirms the action.
//
// Example:
//
//	AuthorizeURL("https://wonderlandengine.com/account/", "abc") // returns "https://wonderlandengine.com/account/?actionId=abc"
func AuthorizeURL(accountURL string, token domain.ActionToken) string {
	return accountURL + "?actionId=" + url.QueryEscape(string(token))
}
