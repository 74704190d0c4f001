// Package taddy implements the remote transcript provider client: a
// query-based HTTPS API that resolves a podcast series, an episode within it,
// and finally the episode's transcript segments. The remote schema drifts, so
// every lookup has a fallback query shape (see lookup.go).
package taddy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEndpoint is the production query endpoint.
const DefaultEndpoint = "https://api.taddy.org"

// Source is the source tag written to transcript records produced by this client.
const Source = "taddy"

// Client issues authenticated queries against the transcript provider.
type Client struct {
	endpoint    string
	apiKey      string
	userID      string
	httpClient  *http.Client
	maxAttempts int
}

// NewClient creates a provider client. Authentication is via two request
// headers carrying the API key and the account identifier.
func NewClient(apiKey, userID string) *Client {
	return &Client{
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		userID:   userID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxAttempts: defaultMaxAttempts,
	}
}

// SetEndpoint overrides the query endpoint (used by tests).
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// SetHTTPClient overrides the underlying HTTP client.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// queryRequest is the JSON body of every call: a query document plus variables.
type queryRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type queryError struct {
	Message string `json:"message"`
}

type queryResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []queryError    `json:"errors"`
}

// query posts one query document and unmarshals the response's data payload
// into out. Query-level errors and non-2xx statuses are returned as *APIError
// so callers can classify them (schema mismatch, quota, transient).
func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(queryRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("X-USER-ID", c.userID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("taddy request: %w", err)
	}
	defer drainAndClose(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read taddy response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 512),
		}
	}

	var parsed queryResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decode taddy response: %w", err)
	}

	if len(parsed.Errors) > 0 {
		messages := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			messages = append(messages, e.Message)
		}
		return &APIError{Message: strings.Join(messages, "; ")}
	}

	if out != nil && len(parsed.Data) > 0 {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("decode taddy data: %w", err)
		}
	}
	return nil
}

// queryWithRetry wraps query with the transient-failure retry policy.
func (c *Client) queryWithRetry(ctx context.Context, query string, variables map[string]any, out any) error {
	return withRetry(ctx, c.maxAttempts, func() error {
		return c.query(ctx, query, variables, out)
	})
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
