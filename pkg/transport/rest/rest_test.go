package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// Helpers

func assertHeader(t *testing.T, req *http.Request, header, expected string) {
	t.Helper()
	if value := req.Header.Get(header); value != expected {
		t.Errorf("Expected %s header '%s', got '%s'", header, expected, value)
	}
}

func newTestClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	c, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

type staticAuth string

func (s staticAuth) ApplyAuth(req *http.Request) error {
	req.Header.Set("Authorization", string(s))
	return nil
}

func TestBuilder(t *testing.T) {
	t.Run("DefaultsToGet", func(t *testing.T) {
		b := &Builder{
			URL:         "https://example.com/a",
			Headers:     map[string]string{"X-Test": "1"},
			QueryParams: map[string]string{"q": "v"},
			AuthHandler: staticAuth("tok"),
		}
		req, err := b.Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		if req.Method != http.MethodGet {
			t.Errorf("Expected GET, got %s", req.Method)
		}
		if got := req.URL.Query().Get("q"); got != "v" {
			t.Errorf("Expected query q=v, got %q", got)
		}
		assertHeader(t, req, "X-Test", "1")
		assertHeader(t, req, "Authorization", "tok")
	})

	t.Run("KeepsExistingQuery", func(t *testing.T) {
		b := &Builder{URL: "https://example.com/a?x=1", QueryParams: map[string]string{"y": "2"}}
		req, err := b.Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if req.URL.Query().Get("x") != "1" || req.URL.Query().Get("y") != "2" {
			t.Errorf("Expected both query params, got %q", req.URL.RawQuery)
		}
	})

	t.Run("FormBody", func(t *testing.T) {
		b := &Builder{
			URL:    "https://example.com/login",
			Method: http.MethodPost,
			Form:   url.Values{"utf8": {"✓"}, "button": {""}},
		}
		req, err := b.Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		assertHeader(t, req, "Content-Type", "application/x-www-form-urlencoded")
		body, _ := io.ReadAll(req.Body)
		form, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("Body is not a form: %v", err)
		}
		if form.Get("utf8") != "✓" {
			t.Errorf("Expected utf8 checkmark, got %q", form.Get("utf8"))
		}
		if _, ok := form["button"]; !ok {
			t.Errorf("Expected empty button field in %q", body)
		}
	})

	t.Run("JSONBody", func(t *testing.T) {
		b := &Builder{URL: "https://example.com/q", Method: http.MethodPost, JSON: map[string]string{"query": "{ id }"}}
		req, err := b.Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		assertHeader(t, req, "Content-Type", "application/json")
		var got map[string]string
		if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
			t.Fatalf("Body is not JSON: %v", err)
		}
		if got["query"] != "{ id }" {
			t.Errorf("Expected query in body, got %v", got)
		}
	})

	t.Run("FormAndJSONConflict", func(t *testing.T) {
		b := &Builder{URL: "https://example.com", Form: url.Values{}, JSON: 1}
		_, err := b.Build(context.Background())
		if !errors.Is(err, errors.ErrHTTPRequest) {
			t.Errorf("Expected ErrHTTPRequest, got %v", err)
		}
	})
}

func TestClientRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
			http.Redirect(w, r, "/end", http.StatusFound)
		case "/end":
			c, err := r.Cookie("session")
			if err != nil {
				http.Error(w, "no session", http.StatusUnauthorized)
				return
			}
			_, _ = io.WriteString(w, c.Value)
		}
	}))
	defer srv.Close()

	c := newTestClient(t)

	t.Run("NoFollow", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/start", nil)
		resp, err := c.Do(req, false)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		defer Discard(resp)

		if resp.StatusCode != http.StatusFound {
			t.Errorf("Expected 302, got %d", resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "/end" {
			t.Errorf("Expected Location /end, got %q", loc)
		}
	})

	t.Run("SharedJarAcrossClients", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/end", nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if string(body) != "s1" {
			t.Errorf("Expected cookie set by the no-follow client, got %q (status %d)", body, resp.StatusCode)
		}
	})

	t.Run("Follow", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/start", nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		defer Discard(resp)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200 after redirect, got %d", resp.StatusCode)
		}
	})
}

func TestUserAgent(t *testing.T) {
	seen := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.UserAgent()
	}))
	defer srv.Close()

	c := newTestClient(t, WithUserAgent("butterflymx-go"))

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req, true)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	Discard(resp)

	req, _ = http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "custom")
	resp, err = c.Do(req, true)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	Discard(resp)

	if got := <-seen; got != "butterflymx-go" {
		t.Errorf("Expected default user agent, got %q", got)
	}
	if got := <-seen; got != "custom" {
		t.Errorf("Expected explicit user agent to win, got %q", got)
	}
}

func TestCheckResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			_, _ = io.WriteString(w, `{"data":{"id":"1"}}`)
			return
		}
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t)

	t.Run("HTTPError", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/denied", nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}

		err = CheckResponse(resp)
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("Expected *HTTPError, got %v", err)
		}
		if httpErr.StatusCode != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", httpErr.StatusCode)
		}
		if !strings.Contains(httpErr.Body, "nope") {
			t.Errorf("Expected body on error, got %q", httpErr.Body)
		}
	})

	t.Run("DecodeJSON", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/ok", nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}

		var out map[string]any
		if err := DecodeJSON(resp, &out); err != nil {
			t.Fatalf("DecodeJSON failed: %v", err)
		}
		if _, ok := out["data"]; !ok {
			t.Errorf("Expected data key, got %v", out)
		}
	})
}

func TestRetryTransport(t *testing.T) {
	cfg := &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    0.001,
		BackoffMultiplier: 2,
		RetryableStatuses: []int{http.StatusServiceUnavailable},
	}

	t.Run("RetriesRetryableStatus", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, "ok")
		}))
		defer srv.Close()

		c := newTestClient(t, WithRetry(cfg))
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		Discard(resp)

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected 200, got %d", resp.StatusCode)
		}
		if hits.Load() != 3 {
			t.Errorf("Expected 3 attempts, got %d", hits.Load())
		}
	})

	t.Run("ReturnsLastResponseWhenExhausted", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := newTestClient(t, WithRetry(cfg))
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		Discard(resp)

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", resp.StatusCode)
		}
		if hits.Load() != 3 {
			t.Errorf("Expected 3 attempts, got %d", hits.Load())
		}
	})

	t.Run("SkipsPost", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := newTestClient(t, WithRetry(cfg))
		req, _ := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("x"))
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		Discard(resp)

		if hits.Load() != 1 {
			t.Errorf("Expected a single attempt for POST, got %d", hits.Load())
		}
	})

	t.Run("NonRetryableStatusPassesThrough", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := newTestClient(t, WithRetry(cfg))
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req, true)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		Discard(resp)

		if resp.StatusCode != http.StatusNotFound || hits.Load() != 1 {
			t.Errorf("Expected one 404, got %d after %d attempts", resp.StatusCode, hits.Load())
		}
	})

	t.Run("BackoffStaysCapped", func(t *testing.T) {
		rt := NewRetryTransport(nil, &RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1,
			BackoffMultiplier: 1e300,
		})
		for attempt := 0; attempt <= 10; attempt++ {
			d := rt.backoff(attempt)
			if d < 0 || d > maxBackoff {
				t.Errorf("attempt %d: backoff %v outside [0, %v]", attempt, d, maxBackoff)
			}
		}
	})
}
