// Package transport provides the JSON-over-HTTP client used by venue adapters.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every venue call.
const DefaultTimeout = 15 * time.Second

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Error is returned for non-2xx responses.
type Error struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// Temporary reports whether the status is worth retrying.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// IsTransient classifies network failures, timeouts, 429 and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Client is a base-URL scoped JSON client.
type Client struct {
	doer      Doer
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewClient builds a client. A nil doer gets an http.Client with DefaultTimeout.
func NewClient(doer Doer, baseURL string) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
}

func (c *Client) SetUserAgent(ua string) { c.userAgent = ua }

// SetTimeout sets the per-call deadline applied on top of the caller's context.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    []byte
	Headers http.Header
}

// Encode marshals v for use as a request body.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Call performs the request and decodes a JSON response into out (if non-nil).
func (c *Client) Call(ctx context.Context, req Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for k, vals := range req.Headers {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.doer.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Method: req.Method, Path: req.Path, Body: string(payload)}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Get is a convenience wrapper around Call.
func (c *Client) Get(ctx context.Context, path string, query url.Values, headers http.Header, out any) error {
	return c.Call(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Headers: headers}, out)
}

// Post JSON-encodes in and sends it.
func (c *Client) Post(ctx context.Context, path string, in any, headers http.Header, out any) error {
	body, err := Encode(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.Call(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers}, out)
}
