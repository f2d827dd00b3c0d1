package config

import (
	"time"

	"github.com/saturnines/butterflymx-go/pkg/auth"
	"github.com/saturnines/butterflymx-go/pkg/transport/rest"
)

// Config represents the full client configuration
type Config struct {
	APIURL   string   `yaml:"api_url"`        // GraphQL endpoint
	Accounts Accounts `yaml:"accounts"`       // Accounts service used for login
	Auth     Auth     `yaml:"auth"`           // Credentials
	HTTP     HTTP     `yaml:"http,omitempty"` // Transport tuning
	Log      Log      `yaml:"log,omitempty"`  // Logging
}

// Accounts locates the accounts service
type Accounts struct {
	URL         string `yaml:"url"`
	RedirectURI string `yaml:"redirect_uri,omitempty"`
}

// Auth holds every credential the session can start from. Either
// refresh_token or email and password must be set.
type Auth struct {
	Email                string `yaml:"email,omitempty"`
	Password             string `yaml:"password,omitempty"`
	ClientID             string `yaml:"client_id,omitempty"`
	ClientSecret         string `yaml:"client_secret,omitempty"`
	RefreshToken         string `yaml:"refresh_token,omitempty"`
	AccessToken          string `yaml:"access_token,omitempty"`
	AccessTokenExpiresAt int64  `yaml:"access_token_expires_at,omitempty"` // unix seconds
}

// HTTP contains transport settings
type HTTP struct {
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Retry     *Retry        `yaml:"retry,omitempty"`
}

// Retry configures retries of idempotent requests
type Retry struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialBackoff    float64 `yaml:"initial_backoff"` // seconds
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	RetryableStatuses []int   `yaml:"retryable_statuses,omitempty"`
}

// Log selects logger level and format
type Log struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// Credentials converts the auth section into session credentials. Empty
// values are left out.
func (c *Config) Credentials() []auth.Credential {
	var creds []auth.Credential
	a := c.Auth
	if a.Email != "" || a.Password != "" {
		creds = append(creds, auth.EmailPassword{Email: a.Email, Password: a.Password})
	}
	if a.ClientID != "" {
		creds = append(creds, auth.OAuthClient{ClientID: a.ClientID, ClientSecret: a.ClientSecret})
	}
	if a.RefreshToken != "" {
		creds = append(creds, auth.RefreshToken{Value: a.RefreshToken})
	}
	if a.AccessToken != "" {
		creds = append(creds, auth.AccessToken{
			Token:     a.AccessToken,
			ExpiresAt: time.Unix(a.AccessTokenExpiresAt, 0),
		})
	}
	return creds
}

// Endpoints returns the accounts endpoints with configured overrides.
func (c *Config) Endpoints() auth.Endpoints {
	e := auth.DefaultEndpoints()
	if c.Accounts.URL != "" {
		e.AccountsURL = c.Accounts.URL
	}
	if c.Accounts.RedirectURI != "" {
		e.RedirectURI = c.Accounts.RedirectURI
	}
	return e
}

// ClientOptions returns the transport options described by the http section.
func (c *Config) ClientOptions() []rest.ClientOption {
	opts := []rest.ClientOption{rest.WithTimeout(c.HTTP.Timeout)}
	if c.HTTP.UserAgent != "" {
		opts = append(opts, rest.WithUserAgent(c.HTTP.UserAgent))
	}
	if r := c.HTTP.Retry; r != nil {
		opts = append(opts, rest.WithRetry(&rest.RetryConfig{
			MaxAttempts:       r.MaxAttempts,
			InitialBackoff:    r.InitialBackoff,
			BackoffMultiplier: r.BackoffMultiplier,
			RetryableStatuses: r.RetryableStatuses,
		}))
	}
	return opts
}
