package azproxy

import (
	"errors"
	"fmt"
)

// Common error variables
var (
	// ErrInvalidConfig is returned when required configuration values are missing or malformed.
	ErrInvalidConfig = errors.New("azproxy: invalid configuration")

	// ErrAuthFailed is returned when the identity provider rejects a token request
	// or answers with something that is not a usable token.
	ErrAuthFailed = errors.New("azproxy: authentication failed")

	// ErrNoDeployment is returned when a requested model has no configured deployment.
	// Callers should treat it as a client error.
	ErrNoDeployment = errors.New("azproxy: no deployment configured")

	// ErrUpstream is returned when the provider API answers with a non-success status.
	ErrUpstream = errors.New("azproxy: upstream request failed")

	// ErrProtocol is returned when the provider answers with a success status but
	// the body is missing a mandatory field.
	ErrProtocol = errors.New("azproxy: protocol violation")

	// ErrInvalidRequest is returned when a caller-supplied body cannot be shaped.
	ErrInvalidRequest = errors.New("azproxy: invalid request")
)

// ConfigError represents a configuration validation error.
// It provides detailed information about which configuration field is invalid.
type ConfigError struct {
	Field   string // The configuration key that is invalid
	Value   string // The invalid value (if safe to log)
	Message string // Detailed error message
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("azproxy: invalid config field %q (value: %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("azproxy: invalid config field %q: %s", e.Field, e.Message)
}

// Is implements error matching for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// AuthError represents a failed credential exchange with the identity provider.
type AuthError struct {
	Status int    // HTTP status from the identity provider, 0 if none was received
	Body   string // Response body text, if any
	Cause  error  // The underlying error
}

func (e *AuthError) Error() string {
	switch {
	case e.Status != 0 && e.Body != "":
		return fmt.Sprintf("azproxy: token request failed with status %d: %s", e.Status, e.Body)
	case e.Status != 0:
		return fmt.Sprintf("azproxy: token request failed with status %d", e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("azproxy: token request failed: %v", e.Cause)
	}
	return "azproxy: token request failed"
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for AuthError.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthFailed
}

// ResolutionError is returned when a logical model name has no deployment.
type ResolutionError struct {
	Model string
}

func (e *ResolutionError) Error() string {
	if e.Model == "" {
		return "azproxy: request does not name a model"
	}
	return fmt.Sprintf("azproxy: no deployment configured for model %q", e.Model)
}

// Is implements error matching for ResolutionError.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrNoDeployment
}

// UpstreamError carries a non-success provider response.
// The body text is preserved for diagnostics.
type UpstreamError struct {
	Operation string // e.g. "responses", "realtime session"
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("azproxy: %s call failed (%d): %s", e.Operation, e.Status, e.Body)
}

// Is implements error matching for UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// ProtocolError represents a success response that is missing a mandatory field.
type ProtocolError struct {
	Operation string
	Field     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("azproxy: %s response missing %s", e.Operation, e.Field)
}

// Is implements error matching for ProtocolError.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// Helper functions for creating specific errors

// NewConfigError creates a new configuration error.
func NewConfigError(field, value, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewAuthError creates a new authentication error.
func NewAuthError(status int, body string, cause error) *AuthError {
	return &AuthError{
		Status: status,
		Body:   body,
		Cause:  cause,
	}
}

// NewUpstreamError creates a new upstream error.
func NewUpstreamError(operation string, status int, body string) *UpstreamError {
	return &UpstreamError{
		Operation: operation,
		Status:    status,
		Body:      body,
	}
}

// NewProtocolError creates a new protocol error.
func NewProtocolError(operation, field string) *ProtocolError {
	return &ProtocolError{
		Operation: operation,
		Field:     field,
	}
}
