package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

type tokenPair struct {
	access  AccessToken
	refresh RefreshToken
}

// refresh trades the refresh token for a new pair. The grant carries the
// client id but not the secret.
func (m *Manager) refresh(ctx context.Context, rt RefreshToken) (tokenPair, error) {
	cfg, err := m.oauthConfig()
	if err != nil {
		return tokenPair{}, err
	}
	cfg.ClientSecret = ""

	m.logger.DebugContext(ctx, "refreshing session")
	tok, err := cfg.TokenSource(m.oauthContext(ctx), &oauth2.Token{RefreshToken: rt.Value}).Token()
	if err != nil {
		return tokenPair{}, errors.WrapError(err, errors.ErrAuthFlow, "refresh access token")
	}
	return pairFromToken(tok)
}

func (m *Manager) oauthConfig() (*oauth2.Config, error) {
	if m.client == nil || m.client.ClientID == "" {
		return nil, errors.WrapError(nil, errors.ErrAuthFlow, "OAuth client credentials are required")
	}
	return &oauth2.Config{
		ClientID:     m.client.ClientID,
		ClientSecret: m.client.ClientSecret,
		RedirectURL:  m.endpoints.RedirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.endpoints.url(m.endpoints.TokenPath),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

// oauthContext routes token requests through the session's transport.
func (m *Manager) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.transport.HTTPClient())
}

// pairFromToken requires refresh_token, created_at and expires_in in the raw
// response. The expiry is created_at + expires_in, not the local clock.
func pairFromToken(tok *oauth2.Token) (tokenPair, error) {
	refresh, ok := tok.Extra("refresh_token").(string)
	if !ok || refresh == "" {
		return tokenPair{}, missingField("refresh_token")
	}
	createdAt, ok := numberExtra(tok, "created_at")
	if !ok {
		return tokenPair{}, missingField("created_at")
	}
	expiresIn, ok := numberExtra(tok, "expires_in")
	if !ok {
		return tokenPair{}, missingField("expires_in")
	}

	return tokenPair{
		access: AccessToken{
			Token:     tok.AccessToken,
			ExpiresAt: unixSeconds(createdAt + expiresIn),
		},
		refresh: RefreshToken{Value: refresh},
	}, nil
}

func missingField(name string) error {
	return errors.WrapError(fmt.Errorf("missing %q", name), errors.ErrAuthFlow, "read token response")
}

// numberExtra reads a numeric field from a JSON or form-encoded token
// response.
func numberExtra(tok *oauth2.Token, key string) (float64, bool) {
	switch v := tok.Extra(key).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func unixSeconds(s float64) time.Time {
	return time.UnixMilli(int64(math.Round(s * 1000)))
}
