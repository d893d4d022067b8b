package session

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned by Get before the handshake has succeeded.
var ErrNotAuthenticated = errors.New("session is not authenticated")

// AuthKind identifies which part of the handshake failed.
type AuthKind int

const (
	AuthUsernameRejected AuthKind = iota + 1
	AuthLoginFailed
	AuthTransport
)

func (k AuthKind) String() string {
	switch k {
	case AuthUsernameRejected:
		return "username_rejected"
	case AuthLoginFailed:
		return "login_failed"
	case AuthTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// AuthError is returned by Authenticate. It is fatal for the run.
type AuthError struct {
	Kind AuthKind
	Step string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s (%s step): %v", e.Kind, e.Step, e.Err)
	}
	return fmt.Sprintf("auth %s (%s step)", e.Kind, e.Step)
}

func (e *AuthError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: status %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.URL, e.StatusCode)
}
