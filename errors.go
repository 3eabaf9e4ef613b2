package portalAuth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCredentials is returned when the primary API rejects a username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetworkFailure is returned when the primary API cannot be reached or fails server-side.
	ErrNetworkFailure = errors.New("network failure")
	// ErrSessionExpired is returned when a token refresh fails. The session is cleared.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthorized is returned when an authenticated call is rejected. The session is cleared.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse is returned when the primary API answers with an unusable body.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrStorageUnavailable is returned when the persisted session cannot be written.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrLoginThrottled is the cause attached when a username has failed to
	// sign in too often. It is reported as invalid credentials.
	ErrLoginThrottled = errors.New("login throttled")
	// ErrManagerNotReady is returned by operations on a nil or closed Manager.
	ErrManagerNotReady = errors.New("session manager not initialized")
)

// ErrorKind classifies an [AuthError].
type ErrorKind uint8

const (
	// KindNetworkFailure covers transport errors, timeouts and 5xx answers.
	KindNetworkFailure ErrorKind = iota
	// KindInvalidCredentials is a rejected login.
	KindInvalidCredentials
	// KindSessionExpired is a failed refresh.
	KindSessionExpired
	// KindUnauthorized is a rejected authenticated call.
	KindUnauthorized
	// KindMalformedResponse is a login or profile answer missing required fields.
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetworkFailure:
		return "network_failure"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindSessionExpired:
		return "session_expired"
	case KindUnauthorized:
		return "unauthorized"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindSessionExpired:
		return ErrSessionExpired
	case KindUnauthorized:
		return ErrUnauthorized
	case KindMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrNetworkFailure
	}
}

// ClearsSession reports whether errors of this kind end the session.
func (k ErrorKind) ClearsSession() bool {
	return k == KindSessionExpired || k == KindUnauthorized
}

func (k ErrorKind) defaultMessage() string {
	switch k {
	case KindInvalidCredentials:
		return "Incorrect username or password."
	case KindSessionExpired:
		return "Your session has expired, please sign in again."
	case KindUnauthorized:
		return "You are not signed in, please sign in again."
	case KindMalformedResponse:
		return "The server returned an unexpected response."
	default:
		return "The server could not be reached, please try again."
	}
}

// AuthError is the error type returned by [Manager] operations. It matches
// both its kind sentinel and its cause under errors.Is.
//
//	Docs: docs/errors.md
type AuthError struct {
	Kind ErrorKind
	// Message is safe to show to the user.
	Message string
	Err     error
}

// userMessager is implemented by collaborator errors that carry a message
// the server wrote for the user.
type userMessager interface {
	UserMessage() string
}

// newAuthError prefers the server's own message over the kind's default.
func newAuthError(kind ErrorKind, cause error) *AuthError {
	msg := kind.defaultMessage()
	var um userMessager
	if errors.As(cause, &um) {
		if s := strings.TrimSpace(um.UserMessage()); s != "" {
			msg = s
		}
	}
	return &AuthError{Kind: kind, Message: msg, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return e.Kind.sentinel().Error() + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// KindOf classifies err. Sentinels are matched in order of specificity and
// anything unrecognised is a network failure.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	default:
		return KindNetworkFailure
	}
}
