package errors

import (
	"errors"
	"fmt"
)

// Standard error types
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrUninitializedState = errors.New("uninitialized state")
	ErrAuthFlow           = errors.New("authentication flow error")
	ErrValueEncoding      = errors.New("value encoding error")
	ErrHTTPRequest        = errors.New("HTTP request error")
	ErrHTTPResponse       = errors.New("HTTP response error")
)

// WrapError wraps an error with a standard error type.
// Both errType and err stay reachable through errors.Is / errors.As.
func WrapError(err error, errType error, message string) error {
	if err == nil {
		return fmt.Errorf("%w: %s", errType, message)
	}
	return fmt.Errorf("%w: %s: %w", errType, message, err)
}

// Is provides a convenience wrapper around errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As provides a convenience wrapper around errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap provides a convenience wrapper around errors.Unwrap
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
