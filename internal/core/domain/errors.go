package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized signals an explicit credential rejection by the
	// platform (HTTP 401/403, or a verify response with success=false).
	// It is the only error that may clear local session state; anything
	// else is an inconclusive network or infrastructure failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrCacheMiss is returned by credential caches when no user is stored.
	ErrCacheMiss = errors.New("credential cache miss")

	// ErrUserNotFound is the stub API's rejection for an unknown account.
	ErrUserNotFound = errors.New("user not found")
)

// APIError carries the status and message of a non-2xx or success=false
// platform response. It unwraps to ErrUnauthorized for credential
// rejections so callers can branch with errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("platform api: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}
