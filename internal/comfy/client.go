package comfy

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

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "comfyctl/0.1"
	maxReasonBytes   = 4096
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a single generation server.
type Client struct {
	address    string
	secure     bool
	userAgent  string
	httpClient HTTPDoer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		if strings.TrimSpace(agent) != "" {
			c.userAgent = agent
		}
	}
}

// New creates a client for address, a host:port pair. Secure selects
// https and wss.
func New(address string, secure bool, opts ...Option) (*Client, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.New("server address required")
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", address, err)
	}
	client := &Client{
		address:    address,
		secure:     secure,
		userAgent:  defaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Address returns the configured host:port.
func (c *Client) Address() string {
	return c.address
}

// BaseURL returns the HTTP root of the server.
func (c *Client) BaseURL() string {
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	return scheme + "://" + c.address
}

// StreamURL returns the progress stream URL for clientID.
func (c *Client) StreamURL(clientID string) string {
	scheme := "ws"
	if c.secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: c.address, Path: "/ws"}
	u.RawQuery = url.Values{"clientId": {clientID}}.Encode()
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.BaseURL() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// send executes req and returns the response when the status is 2xx. The
// caller closes the body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, &RequestError{
			Method: req.Method,
			Path:   req.URL.Path,
			Err:    fmt.Errorf("execute request (latency=%v): %w", latency, err),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &RequestError{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Reason: readReason(resp),
		}
	}
	return resp, nil
}

func readReason(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
	reason := strings.TrimSpace(string(data))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(req, resp, out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(req, resp, out)
}

func decodeBody(req *http.Request, resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Reason: "malformed response body",
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}
