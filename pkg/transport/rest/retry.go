package rest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 30 * time.Second

// RetryConfig controls RetryTransport.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    float64 // seconds
	BackoffMultiplier float64
	RetryableStatuses []int
}

// RetryTransport retries idempotent requests on timeouts and on the
// configured status codes, with full-jitter exponential backoff.
type RetryTransport struct {
	Base http.RoundTripper
	Cfg  *RetryConfig

	mu     sync.Mutex
	jitter *rand.Rand
}

// NewRetryTransport creates a new retry transport
func NewRetryTransport(base http.RoundTripper, cfg *RetryConfig) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		Base:   base,
		Cfg:    cfg,
		jitter: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Cfg == nil || t.Cfg.MaxAttempts <= 1 {
		return t.Base.RoundTrip(req)
	}

	switch req.Method {
	case http.MethodGet, http.MethodHead,
		http.MethodPut, http.MethodDelete,
		http.MethodOptions, http.MethodTrace:
	default:
		return t.Base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt < t.Cfg.MaxAttempts; attempt++ {
		req2, err := t.cloneRequest(req)
		if err != nil {
			return nil, err
		}

		resp, err := t.Base.RoundTrip(req2)
		if err != nil {
			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				return nil, err
			}
			lastErr = err
		} else {
			if lastResp != nil {
				lastResp.Body.Close()
				lastResp = nil
			}
			if !slices.Contains(t.Cfg.RetryableStatuses, resp.StatusCode) {
				return resp, nil
			}
			lastResp = resp
		}

		if attempt == t.Cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-req.Context().Done():
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, req.Context().Err()
		case <-time.After(t.backoff(attempt)):
		}
	}

	// Hand back the last retryable response so the caller sees its status.
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, fmt.Errorf("retry transport failed after %d attempts: %w", t.Cfg.MaxAttempts, lastErr)
}

// cloneRequest copies r so its body can be replayed.
func (t *RetryTransport) cloneRequest(r *http.Request) (*http.Request, error) {
	r2 := r.Clone(r.Context())
	if r.Body == nil || r.Body == http.NoBody {
		return r2, nil
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	r2.Body = io.NopCloser(bytes.NewReader(buf))
	return r2, nil
}

// backoff computes full jitter exponential backoff. The ceiling is clamped
// in float64 so a large multiplier cannot overflow time.Duration.
func (t *RetryTransport) backoff(attempt int) time.Duration {
	ceiling := t.Cfg.InitialBackoff * float64(time.Second) * math.Pow(t.Cfg.BackoffMultiplier, float64(attempt))
	switch {
	case !(ceiling < float64(maxBackoff)):
		ceiling = float64(maxBackoff)
	case ceiling < 0:
		ceiling = 0
	}

	t.mu.Lock()
	f := t.jitter.Float64()
	t.mu.Unlock()
	return time.Duration(f * ceiling)
}
