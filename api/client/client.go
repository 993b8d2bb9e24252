// Package client talks to a running "stacks serve" over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/stacks/api"
)

// DefaultTimeout bounds a single request. Ask calls wait on the generator,
// so it is generous.
const DefaultTimeout = 3 * time.Minute

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("stacks API request failed (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("stacks API request failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client is a stacks API client.
type Client struct {
	target     *url.URL
	httpClient *http.Client
}

// New creates a client for the server at target, e.g. "http://localhost:8081".
func New(target string) (*Client, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q needs a scheme and host", target)
	}

	return &Client{
		target:     u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var pong string
	return c.do(ctx, http.MethodGet, "/ping", nil, &pong)
}

// Buckets lists the server's buckets.
func (c *Client) Buckets(ctx context.Context) (*api.ListBucketsResponse, error) {
	var out api.ListBucketsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/buckets", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query ranks a bucket against question. A topK of zero uses the server's
// configured default.
func (c *Client) Query(ctx context.Context, bucket, question string, topK int) (*api.QueryResponse, error) {
	var out api.QueryResponse
	req := api.QueryRequest{Question: question, TopK: topK}
	if err := c.do(ctx, http.MethodPost, "/v1/buckets/"+url.PathEscape(bucket)+"/query", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask answers question from a bucket.
func (c *Client) Ask(ctx context.Context, bucket, question string) (*api.AskResponse, error) {
	var out api.AskResponse
	req := api.AskRequest{Question: question}
	if err := c.do(ctx, http.MethodPost, "/v1/buckets/"+url.PathEscape(bucket)+"/ask", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u := *c.target
	u.Path = path

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to stacks API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er api.ErrorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Code = er.Code
			apiErr.Message = er.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
