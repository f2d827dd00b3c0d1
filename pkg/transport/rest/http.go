package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// maxErrorBody caps how much of a failed response is kept on HTTPError.
const maxErrorBody = 4 << 10

// HTTPDoer is a minimal interface for HTTP clients
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPError wraps HTTP error responses
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Status, e.Body)
}

// Client sends requests over two http.Clients that share a cookie jar: one
// follows redirects and one hands 3xx responses back to the caller.
type Client struct {
	follow   *http.Client
	noFollow *http.Client
}

type clientConfig struct {
	timeout   time.Duration
	transport http.RoundTripper
	retry     *RetryConfig
	userAgent string
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

// WithTimeout sets the overall timeout of each request. Zero means none.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithTransport swaps the base round tripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) {
		c.transport = rt
	}
}

// WithRetry wraps the transport in a RetryTransport.
func WithRetry(cfg *RetryConfig) ClientOption {
	return func(c *clientConfig) {
		c.retry = cfg
	}
}

// WithUserAgent sets a default User-Agent for requests that carry none.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = userAgent
	}
}

// NewClient creates a Client with a fresh cookie jar.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "create cookie jar")
	}

	rt := cfg.transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if cfg.retry != nil && cfg.retry.MaxAttempts > 1 {
		rt = NewRetryTransport(rt, cfg.retry)
	}
	if cfg.userAgent != "" {
		rt = &userAgentTransport{base: rt, userAgent: cfg.userAgent}
	}

	return &Client{
		follow: &http.Client{
			Transport: rt,
			Jar:       jar,
			Timeout:   cfg.timeout,
		},
		noFollow: &http.Client{
			Transport: rt,
			Jar:       jar,
			Timeout:   cfg.timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Do sends req. With followRedirects false a 3xx response is returned as is,
// Location header included.
func (c *Client) Do(req *http.Request, followRedirects bool) (*http.Response, error) {
	if followRedirects {
		return c.follow.Do(req)
	}
	return c.noFollow.Do(req)
}

// HTTPClient returns the redirect-following client.
func (c *Client) HTTPClient() *http.Client {
	return c.follow
}

// CheckResponse returns an *HTTPError for any non-2xx response and closes
// its body. 2xx responses are left untouched.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}

// DecodeJSON checks resp and decodes its body into v. The body is always
// closed.
func DecodeJSON(resp *http.Response, v any) error {
	if err := CheckResponse(resp); err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.WrapError(err, errors.ErrHTTPResponse, "decode JSON response")
	}
	return nil
}

// Discard drains and closes a response body so the connection can be reused.
func Discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r2 := req.Clone(req.Context())
	r2.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r2)
}
