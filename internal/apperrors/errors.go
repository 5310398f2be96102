// Package apperrors defines the error taxonomy returned by ticket operations
// and its classification into client and server failures.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error category sent to callers.
type Kind string

const (
	KindInvalidInput           Kind = "InvalidInput"
	KindUnauthenticated        Kind = "Unauthenticated"
	KindForbidden              Kind = "Forbidden"
	KindNotFound               Kind = "NotFound"
	KindIllegalTransition      Kind = "IllegalTransition"
	KindConcurrentModification Kind = "ConcurrentModification"
	KindAlreadyExists          Kind = "AlreadyExists"
	KindServerError            Kind = "ServerError"
)

// HTTPStatus returns the transport status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindIllegalTransition:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConcurrentModification:
		return http.StatusConflict
	default:
		// AlreadyExists is only reachable through an id collision, which is a fault on our side.
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the caller caused the failure.
func (k Kind) IsClientError() bool {
	return k.HTTPStatus() < http.StatusInternalServerError
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and caller-facing message to err.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf classifies err. Anything that is not an *Error is a ServerError.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindServerError
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage is the message that is safe to show a caller. Unclassified
// errors never expose their text.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
