package client

import "fmt"

// ConnectionError reports that the transport could not be established.
// Fatal to the session attempt, no retry.
type ConnectionError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the wrapped error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// AuthErrorKind distinguishes authentication failure causes.
type AuthErrorKind uint8

// Authentication failure kinds.
const (
	// AuthInvalidCredential is an explicit rejection by the service.
	AuthInvalidCredential AuthErrorKind = iota

	// AuthTimeout means no definitive response arrived within the window.
	AuthTimeout

	// AuthTransport is a transport failure during the auth phase.
	AuthTransport
)

// AuthError reports that authentication did not succeed.
// Fatal to the session attempt.
type AuthError struct {
	Kind   AuthErrorKind
	Reason string // service-provided, for AuthInvalidCredential
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthInvalidCredential:
		return fmt.Sprintf("authentication rejected: %s", e.Reason)
	case AuthTimeout:
		return "authentication timed out"
	case AuthTransport:
		return fmt.Sprintf("authentication transport failure: %v", e.Err)
	default:
		return "authentication failed"
	}
}

// Unwrap returns the wrapped error.
func (e *AuthError) Unwrap() error {
	return e.Err
}
