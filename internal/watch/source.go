package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Source reports the percentage complete for a job. An empty job id means
// the most recently updated job.
type Source interface {
	Progress(ctx context.Context, jobID string) (float64, error)
}

// TrackerReader is satisfied by *progress.Tracker.
type TrackerReader interface {
	Read(ctx context.Context, jobID string) float64
}

// TrackerSource reads progress straight from a local tracker.
type TrackerSource struct {
	Tracker TrackerReader
}

// Progress implements Source.
func (s TrackerSource) Progress(ctx context.Context, jobID string) (float64, error) {
	if s.Tracker == nil {
		return 0, fmt.Errorf("tracker source: no tracker configured")
	}
	return s.Tracker.Read(ctx, jobID), nil
}

// HTTPSource polls the render-progress endpoint of a running daemon.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSource builds a source for the API at baseURL. token is sent as a
// bearer token when non-empty.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Progress implements Source.
func (s *HTTPSource) Progress(ctx context.Context, jobID string) (float64, error) {
	endpoint := s.baseURL + "/api/render-progress"
	if id := strings.TrimSpace(jobID); id != "" {
		endpoint += "?job=" + url.QueryEscape(id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build progress request: %w", err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to get progress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Progress float64 `json:"progress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload.Progress, nil
}
