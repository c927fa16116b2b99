package onlinepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// APIError is returned when OnlinePay answers with a non-2xx status.
// Body holds the upstream response unchanged.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("onlinepay: %s %s: %s: %s", e.Method, e.URL, e.Status, bytes.TrimSpace(e.Body))
}

// Client issues requests against one OnlinePay environment.
// It is safe for concurrent use.
type Client struct {
	creds   Credentials
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request made by the default HTTP client.
// Zero leaves requests bounded only by their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for outbound request logging.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient validates creds and returns a client bound to their environment.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		creds:   creds,
		baseURL: ResolveEnvironment(creds.Environment),
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Timeout:   c.timeout,
			Transport: otelhttp.NewTransport(&loggingTransport{next: http.DefaultTransport, log: c.log}),
		}
	}
	return c, nil
}

// do sends one request and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("onlinepay: encoding body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("onlinepay: creating request: %w", err)
	}
	req.Header.Set("Authorization", c.creds.BasicAuth())
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onlinepay: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("onlinepay: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       respBody,
		}
	}
	return respBody, nil
}

// loggingTransport logs every outbound request. Headers and bodies are
// never logged.
type loggingTransport struct {
	next http.RoundTripper
	log  *zap.SugaredLogger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.log.Warnw("onlinepay request failed", "method", req.Method, "url", req.URL.String(), "duration", elapsed, "err", err)
		return nil, err
	}
	t.log.Debugw("onlinepay request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "duration", elapsed)
	return resp, nil
}
