// Package api is the HTTP client for the translator's REST service:
// translation, speech-to-text, text-to-speech, suggestions and languages.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Call describes a finished request for logging.
type Call struct {
	Op      string
	Method  string
	Path    string
	Status  int
	Metrics *NetworkMetrics
	Err     error
}

type Client struct {
	base  *url.URL
	token string
	http  *tracedClient

	// Observe, when set, is called after every request.
	Observe func(Call)
}

// New builds a client for the API rooted at baseURL, e.g.
// "https://host/api/". token may be empty for anonymous use.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	return &Client{base: u, token: token, http: newTracedClient(timeout)}, nil
}

// SetToken replaces the auth token, e.g. after sign-in.
func (c *Client) SetToken(token string) { c.token = token }

// SignedIn reports whether requests carry a token.
func (c *Client) SignedIn() bool { return c.token != "" }

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string) (*tracedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.http.do(req)
	call := Call{Op: op, Method: method, Path: path, Err: err}
	if resp != nil {
		call.Status = resp.StatusCode
		call.Metrics = resp.Metrics
	}
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = &StatusError{Op: op, Code: resp.StatusCode, Body: string(resp.Body)}
		call.Err = err
	}
	if c.Observe != nil {
		c.Observe(call)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return resp, nil
}

// doJSON sends in as JSON (if non-nil) and decodes the response into out
// (if non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) (*tracedResponse, error) {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, op, method, path, nil, body, contentType)
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return nil, fmt.Errorf("%s: response parse error: %w", op, err)
		}
	}
	return resp, nil
}
