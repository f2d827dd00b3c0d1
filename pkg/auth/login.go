package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/saturnines/butterflymx-go/pkg/errors"
	"github.com/saturnines/butterflymx-go/pkg/htmlform"
	"github.com/saturnines/butterflymx-go/pkg/transport/rest"
)

// SpoofUserAgent is sent on the credential form post and the redirect that
// follows it. The accounts site only completes the app flow for mobile
// browsers.
const SpoofUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148"

// Typed outputs of the login steps.
type (
	authenticityToken string
	authorizationCode string
)

// loginFlow walks the interactive authorization-code flow:
//
//	authorize -> login page -> credentials -> redirect -> exchange
//
// Every step shares the transport's cookie jar.
func (m *Manager) loginFlow(ctx context.Context) (tokenPair, error) {
	if m.login == nil {
		return tokenPair{}, errors.WrapError(nil, errors.ErrAuthFlow, "login requires an email and password")
	}
	cfg, err := m.oauthConfig()
	if err != nil {
		return tokenPair{}, err
	}

	if err := m.authorizeStep(ctx, cfg.ClientID); err != nil {
		return tokenPair{}, err
	}
	token, err := m.loginPageStep(ctx)
	if err != nil {
		return tokenPair{}, err
	}
	next, err := m.credentialsStep(ctx, token)
	if err != nil {
		return tokenPair{}, err
	}
	code, err := m.redirectStep(ctx, next)
	if err != nil {
		return tokenPair{}, err
	}

	m.logger.DebugContext(ctx, "login step", "step", "exchange")
	tok, err := cfg.Exchange(m.oauthContext(ctx), string(code))
	if err != nil {
		return tokenPair{}, errors.WrapError(err, errors.ErrAuthFlow, "exchange authorization code")
	}
	return pairFromToken(tok)
}

// authorizeStep opens the authorization request so the accounts site
// remembers where to send the browser after login.
func (m *Manager) authorizeStep(ctx context.Context, clientID string) error {
	m.logger.DebugContext(ctx, "login step", "step", "authorize")

	resp, err := m.send(ctx, &rest.Builder{
		URL:    m.endpoints.url(m.endpoints.AuthorizePath),
		Method: http.MethodGet,
		QueryParams: map[string]string{
			"client_id":     clientID,
			"redirect_uri":  m.endpoints.RedirectURI,
			"response_type": "code",
		},
	}, false, false)
	if err != nil {
		return err
	}
	rest.Discard(resp)
	return nil
}

func (m *Manager) loginPageStep(ctx context.Context) (authenticityToken, error) {
	m.logger.DebugContext(ctx, "login step", "step", "login_page")

	resp, err := m.send(ctx, &rest.Builder{
		URL:    m.endpoints.url(m.endpoints.LoginPagePath),
		Method: http.MethodGet,
	}, false, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	value, err := htmlform.HiddenInputValue(resp.Body, "authenticity_token")
	if err != nil {
		return "", errors.WrapError(err, errors.ErrAuthFlow, "read login page")
	}
	return authenticityToken(value), nil
}

// credentialsStep posts the login form and returns where the site sends the
// browser next.
func (m *Manager) credentialsStep(ctx context.Context, token authenticityToken) (*url.URL, error) {
	m.logger.DebugContext(ctx, "login step", "step", "credentials")

	resp, err := m.send(ctx, &rest.Builder{
		URL:    m.endpoints.url(m.endpoints.LoginPath),
		Method: http.MethodPost,
		Form: url.Values{
			"utf8":               {"✓"},
			"authenticity_token": {string(token)},
			"account[email]":     {m.login.Email},
			"account[password]":  {m.login.Password},
			"button":             {""},
		},
		Headers: map[string]string{
			"Referer":    m.endpoints.url(m.endpoints.LoginPagePath),
			"Origin":     m.endpoints.AccountsURL,
			"User-Agent": SpoofUserAgent,
		},
	}, false, false)
	if err != nil {
		return nil, err
	}
	defer rest.Discard(resp)

	next, err := resp.Location()
	if err != nil {
		return nil, errors.WrapError(
			fmt.Errorf("status %d: %w", resp.StatusCode, err),
			errors.ErrAuthFlow,
			"submit credentials",
		)
	}
	return next, nil
}

// redirectStep follows the post-login redirect by hand and picks the
// authorization code out of the final redirect to the app's URI.
func (m *Manager) redirectStep(ctx context.Context, next *url.URL) (authorizationCode, error) {
	m.logger.DebugContext(ctx, "login step", "step", "redirect")

	resp, err := m.send(ctx, &rest.Builder{
		URL:    next.String(),
		Method: http.MethodGet,
		Headers: map[string]string{
			"User-Agent": SpoofUserAgent,
			"Referer":    m.endpoints.url(m.endpoints.LoginPagePath),
		},
	}, false, false)
	if err != nil {
		return "", err
	}
	defer rest.Discard(resp)

	target, err := resp.Location()
	if err != nil {
		return "", errors.WrapError(
			fmt.Errorf("status %d: %w", resp.StatusCode, err),
			errors.ErrAuthFlow,
			"follow login redirect",
		)
	}
	code := target.Query().Get("code")
	if code == "" {
		return "", errors.WrapError(
			fmt.Errorf("no code in %s", target.Redacted()),
			errors.ErrAuthFlow,
			"follow login redirect",
		)
	}
	return authorizationCode(code), nil
}
