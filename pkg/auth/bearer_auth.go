package auth

import (
	"fmt"
	"net/http"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// TokenAuth puts a token into the Authorization header. With an empty
// Scheme the header carries the bare token, which is what the denizen API
// expects.
type TokenAuth struct {
	Token  string
	Scheme string // e.g. "Bearer"; empty sends the token alone
}

// NewTokenAuth creates a handler sending the bare token.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{Token: token}
}

// ApplyAuth sets the Authorization header.
func (a *TokenAuth) ApplyAuth(req *http.Request) error {
	if a.Token == "" {
		return errors.WrapError(
			fmt.Errorf("token is required"),
			errors.ErrConfiguration,
			"apply token auth",
		)
	}

	value := a.Token
	if a.Scheme != "" {
		value = a.Scheme + " " + a.Token
	}
	req.Header.Set("Authorization", value)
	return nil
}

// String returns a string representation of this auth method for testing
func (a *TokenAuth) String() string {
	if a.Scheme == "" {
		return "TokenAuth(token: [REDACTED])"
	}
	return fmt.Sprintf("TokenAuth(scheme: %s, token: [REDACTED])", a.Scheme)
}
