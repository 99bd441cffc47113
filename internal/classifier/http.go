package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/repcoach/internal/pose"
)

// HTTPBackend implements Backend by posting the window to an inference
// service and reading back the predicted label.
type HTTPBackend struct {
	url        string
	httpClient *http.Client
}

// Compile-time check: HTTPBackend satisfies Backend.
var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend targeting url. A zero timeout leaves calls
// unbounded.
func NewHTTPBackend(url string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Frames [][]float64 `json:"frames"`
}

type predictResponse struct {
	Label string `json:"label"`
}

// Predict sends {"frames": [[...99 floats], ...]} and expects {"label": "..."}.
func (b *HTTPBackend) Predict(ctx context.Context, window []pose.Frame) (string, error) {
	frames := make([][]float64, len(window))
	for i, f := range window {
		frames[i] = f
	}
	payload, err := json.Marshal(predictRequest{Frames: frames})
	if err != nil {
		return "", fmt.Errorf("classifier: encode window: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classifier: %s: %w", b.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("classifier: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classifier: %s returned %d: %s", b.url, resp.StatusCode, body)
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("classifier: decode response: %w", err)
	}
	if out.Label == "" {
		return "", fmt.Errorf("classifier: %s returned no label: %w", b.url, ErrUnavailable)
	}
	return strings.ToLower(strings.TrimSpace(out.Label)), nil
}
