// Package upload sends finished session summaries to a remote repcoach
// server, for session runners that have no database connection of their own.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/metrics"
)

// Attempts is how many times a summary is sent before giving up.
const Attempts = 3

// Client sends summaries to the repcoach server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the repcoach server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

type mergeResponse struct {
	Merged bool `json:"merged"`
}

// statusError is a non-2xx reply. Client errors are not retried.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("merge failed (status %d): %s", e.status, e.body)
}

// MergeSessionSummary POSTs the summary to the server's session endpoint.
// Retries up to Attempts times with exponential backoff on transport and
// server errors; the server merges each session ID at most once, so a retry
// after a lost reply can not double count.
func (c *Client) MergeSessionSummary(ctx context.Context, s metrics.SessionSummary) (bool, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("marshaling summary: %w", err)
	}

	var lastErr error
	for attempt := range Attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff << uint(attempt-1)):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}

		merged, err := c.send(ctx, data)
		if err == nil {
			return merged, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && se.status < http.StatusInternalServerError {
			return false, err
		}
	}

	return false, fmt.Errorf("after %d attempts: %w", Attempts, lastErr)
}

func (c *Client) send(ctx context.Context, data []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/sessions", bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return false, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var out mergeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("decoding merge response: %w", err)
	}
	return out.Merged, nil
}
