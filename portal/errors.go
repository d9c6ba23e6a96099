package portal

import (
	"errors"
	"fmt"
)

// ErrorKind classifies portal call failures so callers can pick the right
// retry prompt without string-matching messages.
type ErrorKind string

const (
	// ErrorKindTransport is a network/connection failure. Retryable as-is.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindRejected is a portal-reported error (non-2xx or an error
	// payload). Not retryable without new user input.
	ErrorKindRejected ErrorKind = "rejected"
	// ErrorKindValidation is malformed caller input.
	ErrorKindValidation ErrorKind = "validation"
	// ErrorKindNotAuthenticated means the call needs a session token that
	// is absent or no longer accepted.
	ErrorKindNotAuthenticated ErrorKind = "not_authenticated"
	// ErrorKindNotFound means the referenced resource does not exist.
	ErrorKindNotFound ErrorKind = "not_found"
)

// Portal-reported reason codes for login verification failures.
const (
	ReasonInvalidToken = "invalid_token"
	ReasonInvalidCode  = "invalid_code"
)

type Error struct {
	Kind    ErrorKind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("portal %s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("portal %s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, reason string, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the error kind, or "" for non-portal errors.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// ReasonOf returns the portal reason code, or "" when absent.
func ReasonOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

func IsTransport(err error) bool { return KindOf(err) == ErrorKindTransport }
func IsRejected(err error) bool  { return KindOf(err) == ErrorKindRejected }
func IsNotFound(err error) bool  { return KindOf(err) == ErrorKindNotFound }
