package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/saturnines/butterflymx-go/pkg/errors"
	"github.com/saturnines/butterflymx-go/pkg/transport/rest"
)

// Endpoints locates the accounts service.
type Endpoints struct {
	AccountsURL   string
	AuthorizePath string
	LoginPagePath string
	LoginPath     string
	TokenPath     string
	RedirectURI   string
}

// DefaultEndpoints returns the production accounts service.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AccountsURL:   "https://accounts.butterflymx.com",
		AuthorizePath: "/oauth/authorize",
		LoginPagePath: "/login/new",
		LoginPath:     "/login",
		TokenPath:     "/oauth/token",
		RedirectURI:   "com.butterflymx.oauth://oauth",
	}
}

func (e Endpoints) url(path string) string {
	return strings.TrimRight(e.AccountsURL, "/") + path
}

// authFlight is the single singleflight key; there is one session per Manager.
const authFlight = "authenticate"

const tracerName = "github.com/saturnines/butterflymx-go/pkg/auth"

// Manager tracks the session's token pair and renews it before it is used.
type Manager struct {
	transport *rest.Client
	endpoints Endpoints
	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer

	login  *EmailPassword
	client *OAuthClient

	mu           sync.RWMutex
	accessToken  *AccessToken
	refreshToken *RefreshToken

	flights singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger used for flow progress.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTracerProvider sets where renewal spans go. The global provider is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) ManagerOption {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// WithEndpoints points the Manager at a different accounts service.
func WithEndpoints(e Endpoints) ManagerOption {
	return func(m *Manager) {
		m.endpoints = e
	}
}

// NewManager creates a Manager from creds. Either a refresh token or an
// email/password pair is required. A later credential of the same kind
// replaces an earlier one. A nil transport gets a fresh rest.Client.
func NewManager(transport *rest.Client, creds []Credential, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		transport: transport,
		endpoints: DefaultEndpoints(),
		now:       time.Now,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}

	for _, c := range creds {
		switch v := c.(type) {
		case EmailPassword:
			m.login = &v
		case *EmailPassword:
			if v != nil {
				cp := *v
				m.login = &cp
			}
		case OAuthClient:
			m.client = &v
		case *OAuthClient:
			if v != nil {
				cp := *v
				m.client = &cp
			}
		case AccessToken:
			if v.Token != "" {
				m.accessToken = &v
			}
		case *AccessToken:
			if v != nil && v.Token != "" {
				cp := *v
				m.accessToken = &cp
			}
		case RefreshToken:
			if v.Value != "" {
				m.refreshToken = &v
			}
		case *RefreshToken:
			if v != nil && v.Value != "" {
				cp := *v
				m.refreshToken = &cp
			}
		}
	}

	if m.refreshToken == nil && (m.login == nil || m.login.Email == "" || m.login.Password == "") {
		return nil, errors.WrapError(nil, errors.ErrConfiguration,
			"either a refresh token or an email and password must be supplied")
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.transport == nil {
		t, err := rest.NewClient()
		if err != nil {
			return nil, err
		}
		m.transport = t
	}
	return m, nil
}

// AccessToken returns the current access token without renewing it.
func (m *Manager) AccessToken() (AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accessToken == nil {
		return AccessToken{}, errors.WrapError(nil, errors.ErrUninitializedState, "access token has not been obtained yet")
	}
	return *m.accessToken, nil
}

// RefreshToken returns the current refresh token. Callers persist it after a
// renewal because the accounts service rotates it.
func (m *Manager) RefreshToken() (RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.refreshToken == nil {
		return RefreshToken{}, errors.WrapError(nil, errors.ErrUninitializedState, "refresh token has not been obtained yet")
	}
	return *m.refreshToken, nil
}

// EnsureValidToken returns an unexpired access token, renewing the session
// first if needed. Concurrent callers share one renewal and its outcome. A
// caller whose ctx ends stops waiting, but the renewal itself runs to
// completion for the others.
func (m *Manager) EnsureValidToken(ctx context.Context) (AccessToken, error) {
	if tok, ok := m.validToken(); ok {
		return tok, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(authFlight, func() (any, error) {
		if tok, ok := m.validToken(); ok {
			return tok, nil
		}
		return m.authenticate(flightCtx)
	})

	select {
	case <-ctx.Done():
		return AccessToken{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	}
}

// ApplyAuth ensures a valid token using the request's context and puts it
// in the Authorization header.
func (m *Manager) ApplyAuth(req *http.Request) error {
	tok, err := m.EnsureValidToken(req.Context())
	if err != nil {
		return err
	}
	return NewTokenAuth(tok.Token).ApplyAuth(req)
}

// Do builds and sends the request, following redirects. When authenticate
// is set the session is renewed if needed and the token attached.
func (m *Manager) Do(ctx context.Context, rb *rest.Builder, authenticate bool) (*http.Response, error) {
	return m.send(ctx, rb, authenticate, true)
}

func (m *Manager) send(ctx context.Context, rb *rest.Builder, authenticate, follow bool) (*http.Response, error) {
	req, err := rb.Build(ctx)
	if err != nil {
		return nil, err
	}
	if authenticate {
		if err := m.ApplyAuth(req); err != nil {
			return nil, err
		}
	}
	resp, err := m.transport.Do(req, follow)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrHTTPRequest, fmt.Sprintf("%s %s", req.Method, req.URL.Redacted()))
	}
	return resp, nil
}

func (m *Manager) validToken() (AccessToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.accessToken == nil || m.accessToken.Expired(m.now()) {
		return AccessToken{}, false
	}
	return *m.accessToken, true
}

// authenticate runs one renewal and swaps in the new pair only if every step
// succeeded.
func (m *Manager) authenticate(ctx context.Context) (AccessToken, error) {
	m.mu.RLock()
	var rt *RefreshToken
	if m.refreshToken != nil {
		cp := *m.refreshToken
		rt = &cp
	}
	m.mu.RUnlock()

	flow := "login"
	if rt != nil {
		flow = "refresh"
	}
	ctx, span := m.tracer.Start(ctx, "auth.authenticate",
		trace.WithAttributes(attribute.String("auth.flow", flow)))
	defer span.End()

	var (
		pair tokenPair
		err  error
	)
	if rt != nil {
		pair, err = m.refresh(ctx, *rt)
	} else {
		pair, err = m.loginFlow(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		m.logger.WarnContext(ctx, "authentication failed", "flow", flow, "error", err)
		return AccessToken{}, err
	}

	m.mu.Lock()
	m.accessToken = &pair.access
	m.refreshToken = &pair.refresh
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "session authenticated",
		"flow", flow,
		"expires_at", pair.access.ExpiresAt.UTC().Format(time.RFC3339),
	)
	return pair.access, nil
}
