package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a coarse classification of failures. Each kind maps to exactly one
// HTTP status so handlers stay out of the classification business.
type Kind int

const (
	// Internal is the default kind for unclassified failures.
	Internal Kind = iota
	// NotFound indicates a missing user, account, or transaction.
	NotFound
	// ValidationFailed indicates malformed or out-of-range caller input.
	ValidationFailed
	// Unauthorized indicates a missing or unverifiable identity token.
	Unauthorized
	// UpstreamUnavailable indicates a failed call to Plaid, Firebase, or the
	// advice endpoint.
	UpstreamUnavailable
)

// Error carries a kind alongside a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given kind, message, and cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err, defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps an error's kind to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case ValidationFailed:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case UpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
