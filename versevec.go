// Package versevec is a client for the versevec semantic search API.
package versevec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Verse is one search result row.
type Verse struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// SearchOptions tune a single search. Zero values fall back to the
// server-side defaults.
type SearchOptions struct {
	Threshold  float64
	Corpus     string
	MaxResults int
}

// APIError is a non-2xx response decoded from the service error body.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("versevec: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Client talks to a versevec server over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search runs one semantic search.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) ([]Verse, error) {
	body, err := json.Marshal(searchBody(query, opts))
	if err != nil {
		return nil, fmt.Errorf("versevec: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/semantic-search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("versevec: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req.Header)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("versevec: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var verses []Verse
	if err := json.NewDecoder(resp.Body).Decode(&verses); err != nil {
		return nil, fmt.Errorf("versevec: decode response: %w", err)
	}
	return verses, nil
}

// Corpora lists the corpus ids the server will search.
func (c *Client) Corpora(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/corpora", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("versevec: build request: %w", err)
	}
	c.authorize(req.Header)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("versevec: corpora: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var out struct {
		Corpora []string `json:"corpora"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("versevec: decode response: %w", err)
	}
	return out.Corpora, nil
}

// Health reports the server liveness status string. It answers "ok"
// whenever the process is up, regardless of dependency state.
func (c *Client) Health(ctx context.Context) (string, error) {
	return c.statusOf(ctx, "/health")
}

// Ready reports the server readiness status string: "ok" when every
// dependency check passes, "degraded" otherwise.
func (c *Client) Ready(ctx context.Context) (string, error) {
	return c.statusOf(ctx, "/ready")
}

func (c *Client) statusOf(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("versevec: build request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("versevec: %s: %w", path, err)
	}
	defer resp.Body.Close()

	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("versevec: decode response: %w", err)
	}
	return out.Status, nil
}

func (c *Client) authorize(h http.Header) {
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// searchBody builds the wire request, sending only the fields the caller set
// so server defaults apply to the rest.
func searchBody(query string, opts *SearchOptions) map[string]any {
	body := map[string]any{"query": query}
	if opts == nil {
		return body
	}
	if opts.Threshold != 0 {
		body["threshold"] = opts.Threshold
	}
	if opts.Corpus != "" {
		body["bible_version"] = opts.Corpus
	}
	if opts.MaxResults != 0 {
		body["max_results"] = opts.MaxResults
	}
	return body
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Code == "" {
		return &APIError{StatusCode: resp.StatusCode, Code: "unknown", Message: resp.Status}
	}
	return &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Message}
}
