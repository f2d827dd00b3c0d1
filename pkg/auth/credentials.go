package auth

import (
	"fmt"
	"time"
)

// Credential is one piece of input to a Manager. The set of implementations
// is closed: EmailPassword, OAuthClient, AccessToken and RefreshToken.
type Credential interface {
	credential()
}

// EmailPassword is the account login used by the interactive flow.
type EmailPassword struct {
	Email    string
	Password string
}

// OAuthClient identifies the application to the accounts service.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

// AccessToken is a token sent verbatim in the Authorization header.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// RefreshToken is exchanged for a new token pair.
type RefreshToken struct {
	Value string
}

func (EmailPassword) credential() {}
func (OAuthClient) credential()   {}
func (AccessToken) credential()   {}
func (RefreshToken) credential()  {}

// Expired reports whether the token is unusable at now. A token expiring
// exactly at now is expired.
func (t AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (e EmailPassword) String() string {
	return fmt.Sprintf("EmailPassword(email: %s, password: [REDACTED])", e.Email)
}

func (c OAuthClient) String() string {
	return fmt.Sprintf("OAuthClient(client_id: %s, client_secret: [REDACTED])", c.ClientID)
}

func (t AccessToken) String() string {
	return fmt.Sprintf("AccessToken(token: [REDACTED], expires_at: %s)", t.ExpiresAt.Format(time.RFC3339))
}

func (RefreshToken) String() string {
	return "RefreshToken([REDACTED])"
}
