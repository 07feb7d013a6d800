package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/withme/withme/internal/config"
	"github.com/withme/withme/internal/store"
)

// Submission identifies an accepted provider job and where to poll it.
type Submission struct {
	RequestID   string
	StatusURL   string
	ResponseURL string
}

// PollResult is one poll observation. Status is the provider's raw
// status word ("" when the payload carried none); Payload is the
// decoded JSON body of the observation.
type PollResult struct {
	Status     string
	Payload    []byte
	StatusCode int
}

// Client is the image provider contract the orchestrator depends on.
type Client interface {
	Configured() bool
	Submit(ctx context.Context, kind string, body map[string]any) (*Submission, error)
	Poll(ctx context.Context, endpoint string) (*PollResult, error)
	Fetch(ctx context.Context, endpoint string) ([]byte, error)
}

// FalClient talks to the fal.ai queue API.
type FalClient struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
}

// NewFalClient creates a client from config. An unconfigured client is
// still usable; Configured reports false and the orchestrator takes the
// deterministic fallback path.
func NewFalClient(cfg config.FalConfig) *FalClient {
	base := cfg.APIBase
	if base == "" {
		base = "https://queue.fal.run"
	}
	return &FalClient{
		apiKey:  cfg.APIKey,
		apiBase: strings.TrimSuffix(base, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether provider credentials are present.
func (c *FalClient) Configured() bool {
	return c.apiKey != ""
}

// modelPath selects the provider model route for a job kind. Edits go
// through the image-to-image route so the base identity is preserved.
func modelPath(kind string) string {
	if kind == store.KindEdit {
		return "/fal-ai/flux-pro/kontext"
	}
	return "/fal-ai/flux/dev"
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// Submit enqueues a generation request and returns where to poll it.
func (c *FalClient) Submit(ctx context.Context, kind string, body map[string]any) (*Submission, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal submit body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+modelPath(kind), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read submit response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("submit rejected (status %d): %s", resp.StatusCode, string(respBody))
	}

	var sr submitResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("parse submit response: %w", err)
	}
	if sr.RequestID == "" && sr.StatusURL == "" {
		return nil, fmt.Errorf("submit response carried no request id or status url")
	}
	sub := &Submission{RequestID: sr.RequestID, StatusURL: sr.StatusURL, ResponseURL: sr.ResponseURL}
	if sub.StatusURL == "" {
		sub.StatusURL = fmt.Sprintf("%s%s/requests/%s/status", c.apiBase, modelPath(kind), sr.RequestID)
	}
	return sub, nil
}

// Poll queries a status endpoint once. The body may be plain JSON or
// event-stream framed ("data: {...}" lines); both are tolerated. A 5xx
// response is returned as a result with StatusCode set rather than an
// error so the caller can retry within its budget.
func (c *FalClient) Poll(ctx context.Context, endpoint string) (*PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read poll response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return &PollResult{StatusCode: resp.StatusCode}, nil
	}

	payload := unwrapEventStream(body)
	result := &PollResult{Payload: payload, StatusCode: resp.StatusCode}
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &probe); err == nil {
		result.Status = probe.Status
	}
	return result, nil
}

// Fetch retrieves a completed result payload from a dedicated endpoint.
func (c *FalClient) Fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fetch response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch rejected (status %d)", resp.StatusCode)
	}
	return unwrapEventStream(body), nil
}

// unwrapEventStream returns the JSON object carried by the last
// non-empty "data:" line of an event-stream body, or the body unchanged
// when it is not event-stream framed.
func unwrapEventStream(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("data:")) {
		return body
	}
	var last []byte
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(data) > 0 {
			last = data
		}
	}
	if last == nil {
		return body
	}
	return last
}
