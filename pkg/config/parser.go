package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/saturnines/butterflymx-go/pkg/errors"
)

// Defaults for values the file may leave out
const (
	DefaultAPIURL  = "https://api.butterflymx.com/denizen/v1/graphql"
	DefaultTimeout = 30 * time.Second
)

// ConfigLoader defines the interface for loading configs
type ConfigLoader interface {
	Load(path string) (*Config, error)
	Parse(data []byte) (*Config, error)
}

type ValidationError struct {
	Field   string
	Message string
}

// Returns the string representation of validation error
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Validator interface {
	Validate(config *Config) []ValidationError
}

// DefaultValueSetter Handles the interface for setting default values
type DefaultValueSetter interface {
	SetDefaults(config *Config)
}

// VariableExpander defines the interface for expanding variables
type VariableExpander interface {
	Expand(data []byte) []byte
}

// EnvExpander implements VariableExpander using environment variables
type EnvExpander struct{}

// Expand expands environment variables with the given data
func (e *EnvExpander) Expand(data []byte) []byte {
	expanded := os.Expand(string(data), os.Getenv)
	return []byte(expanded)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Files that do not exist are skipped and variables already set
// are kept. With no paths it looks for ".env" in the working directory.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.WrapError(err, errors.ErrConfiguration, "load .env")
	}
	return nil
}

// Loader reads a Config from YAML
type Loader struct {
	expander      VariableExpander
	validators    []Validator
	defaultSetter DefaultValueSetter
}

var _ ConfigLoader = (*Loader)(nil)

// NewLoader creates a new Loader with the given components
func NewLoader(
	expander VariableExpander,
	defaultSetter DefaultValueSetter,
	validators ...Validator,
) *Loader {
	return &Loader{
		expander:      expander,
		validators:    validators,
		defaultSetter: defaultSetter,
	}
}

// DefaultLoader expands environment variables, fills defaults and runs every
// validator in this package.
func DefaultLoader() *Loader {
	return NewLoader(
		&EnvExpander{},
		&Defaults{},
		&RequiredFieldValidator{},
		&AuthValidator{},
		&RetryValidator{},
		&LogValidator{},
	)
}

// Load reads path with DefaultLoader.
func Load(path string) (*Config, error) {
	return DefaultLoader().Load(path)
}

// Load a config from YAML file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "read config file")
	}

	return l.Parse(data)
}

// Parse parses a yaml config
func (l *Loader) Parse(data []byte) (*Config, error) {
	if l.expander != nil {
		data = l.expander.Expand(data)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "parse YAML")
	}

	if l.defaultSetter != nil {
		l.defaultSetter.SetDefaults(&cfg)
	}

	var allErrors []ValidationError
	for _, validator := range l.validators {
		allErrors = append(allErrors, validator.Validate(&cfg)...)
	}
	if len(allErrors) > 0 {
		return nil, errors.WrapError(ValidationErrors(allErrors), errors.ErrConfiguration, "validation errors")
	}

	return &cfg, nil
}

// ValidationErrors is every problem found in one config
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Defaults implements DefaultValueSetter for Config
type Defaults struct{}

// SetDefaults sets default values for Config
func (d *Defaults) SetDefaults(cfg *Config) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Accounts.URL == "" {
		cfg.Accounts.URL = cfg.Endpoints().AccountsURL
	}
	if cfg.Accounts.RedirectURI == "" {
		cfg.Accounts.RedirectURI = cfg.Endpoints().RedirectURI
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = DefaultTimeout
	}
	if r := cfg.HTTP.Retry; r != nil {
		if r.MaxAttempts == 0 {
			r.MaxAttempts = 1
		}
		if r.InitialBackoff == 0 {
			r.InitialBackoff = 0.5
		}
		if r.BackoffMultiplier == 0 {
			r.BackoffMultiplier = 2
		}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// RequiredFieldValidator validates required fields
type RequiredFieldValidator struct{}

// Validate checks that all required fields are present
func (v *RequiredFieldValidator) Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	if cfg.APIURL == "" {
		errs = append(errs, ValidationError{Field: "api_url", Message: "is required"})
	}
	if cfg.Accounts.URL == "" {
		errs = append(errs, ValidationError{Field: "accounts.url", Message: "is required"})
	}
	return errs
}

// AuthValidator handles authentication validation
type AuthValidator struct{}

// Validate checks that the session has something to start from
func (v *AuthValidator) Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	a := cfg.Auth

	if a.RefreshToken == "" && (a.Email == "" || a.Password == "") {
		errs = append(errs, ValidationError{
			Field:   "auth",
			Message: "either refresh_token or email and password are required",
		})
	}
	if a.ClientSecret != "" && a.ClientID == "" {
		errs = append(errs, ValidationError{Field: "auth.client_id", Message: "is required with client_secret"})
	}
	if a.AccessToken != "" && a.AccessTokenExpiresAt <= 0 {
		errs = append(errs, ValidationError{Field: "auth.access_token_expires_at", Message: "is required with access_token"})
	}
	return errs
}

// RetryValidator validates retry configuration
type RetryValidator struct{}

// Validate checks the retry settings when present
func (v *RetryValidator) Validate(cfg *Config) []ValidationError {
	r := cfg.HTTP.Retry
	if r == nil {
		return nil
	}

	var errs []ValidationError
	if r.MaxAttempts < 1 {
		errs = append(errs, ValidationError{Field: "http.retry.max_attempts", Message: "must be at least 1"})
	}
	if r.InitialBackoff < 0 {
		errs = append(errs, ValidationError{Field: "http.retry.initial_backoff", Message: "must not be negative"})
	}
	if r.BackoffMultiplier < 1 {
		errs = append(errs, ValidationError{Field: "http.retry.backoff_multiplier", Message: "must be at least 1"})
	}
	for _, s := range r.RetryableStatuses {
		if s < 100 || s > 599 {
			errs = append(errs, ValidationError{
				Field:   "http.retry.retryable_statuses",
				Message: fmt.Sprintf("invalid HTTP status: %d", s),
			})
		}
	}
	return errs
}

// LogValidator validates logging configuration
type LogValidator struct{}

// Validate checks level and format
func (v *LogValidator) Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.Log.Level)) {
		errs = append(errs, ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level: %s", cfg.Log.Level)})
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(cfg.Log.Format)) {
		errs = append(errs, ValidationError{Field: "log.format", Message: fmt.Sprintf("unknown format: %s", cfg.Log.Format)})
	}
	return errs
}
