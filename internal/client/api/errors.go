package api

import (
	"errors"
	"fmt"
)

// Error codes the backend uses in its response envelope.
const (
	codeActiveSession = "ACTIVE_SESSION_EXISTS"
)

// Sentinel errors for the response classes callers branch on.
var (
	// ErrUnauthorized is returned on any 401; callers treat it as an
	// authentication failure and clear local session state.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrActiveSession is returned when login is refused because another
	// session is active. It is a distinguished result, not a failure: the
	// caller may retry the same login with the force flag set.
	ErrActiveSession = errors.New("active session exists")

	// ErrFeatureUnavailable is returned when an optional endpoint is not
	// implemented by the backend; callers fall back to sample data.
	ErrFeatureUnavailable = errors.New("feature unavailable")
)

// StatusError carries the HTTP status and server message of a non-2xx
// response that does not map to a sentinel.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}
