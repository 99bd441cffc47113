package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
)

// HTTPClient implements DataSource by calling the RepCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) GetDailySummary(ctx context.Context, userID string, date time.Time) (*models.DailySummaryRow, error) {
	var row models.DailySummaryRow
	path := "/api/v1/summaries/" + url.PathEscape(userID) + "/" + date.Format(metrics.DateLayout)
	if err := c.get(ctx, path, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *HTTPClient) GetWeeklySummaries(ctx context.Context, userID string, end time.Time) ([]models.DailySummaryRow, error) {
	params := url.Values{}
	params.Set("end", end.Format(metrics.DateLayout))

	var rows []models.DailySummaryRow
	if err := c.get(ctx, "/api/v1/summaries/"+url.PathEscape(userID)+"/week", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) QuerySessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var rows []models.SessionRow
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(userID), params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *HTTPClient) ListUsers(ctx context.Context) ([]models.UserRow, error) {
	var users []models.UserRow
	if err := c.get(ctx, "/api/v1/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
