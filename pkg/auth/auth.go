// Package auth keeps a ButterflyMX session authenticated.
//
// A Manager owns the current access/refresh token pair and renews it on
// demand, either through the interactive login flow (email and password
// posted to the accounts site, then an authorization-code exchange) or
// through a refresh-token grant. Concurrent callers that find the token
// expired share a single renewal.
package auth

import "net/http"

// Handler defines the interface for auth handlers
type Handler interface {
	ApplyAuth(req *http.Request) error
}

var (
	_ Handler = (*TokenAuth)(nil)
	_ Handler = (*Manager)(nil)
)
