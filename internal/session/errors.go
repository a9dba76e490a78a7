package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session resolution. All of them are expected,
// recoverable conditions represented as values; the resolver never
// panics for a missing or bad credential.
var (
	// ErrNoCredentials indicates that the request carried no credential.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrNoSession indicates that no session exists for the request.
	ErrNoSession = errors.New("no session")

	// ErrSessionExpired indicates that a session was present but has expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionMalformed indicates that the session credential could not
	// be parsed or failed validation.
	ErrSessionMalformed = errors.New("session malformed")
)

// IsAuthFailure reports whether the error is one of the typed session
// failures, as opposed to a transport or configuration error.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrNoSession) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionMalformed)
}

// wrapResolveError attaches detail to a sentinel while keeping errors.Is
// working against it.
func wrapResolveError(sentinel error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
