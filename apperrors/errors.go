package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error so callers (and the HTTP layer)
// can decide whether to retry, re-submit with different input, or give up.
type Kind string

const (
	KindConcurrencyConflict   Kind = "concurrency_conflict"
	KindValidationFailed      Kind = "validation_failed"
	KindCatalogUnavailable    Kind = "catalog_unavailable"
	KindAlreadyConverted      Kind = "already_converted"
	KindAlreadyTerminal       Kind = "already_terminal"
	KindRequiresAuthorization Kind = "requires_authorization"
	KindSessionExpired        Kind = "session_expired"
	KindNotFound              Kind = "not_found"
	KindInternal              Kind = "internal"
)

// Error represents an application error with a kind and an HTTP status code.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(kind Kind, code int, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a new Error wrapping an underlying cause.
func Wrap(kind Kind, code int, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func ConcurrencyConflict(message string) *Error {
	return New(KindConcurrencyConflict, http.StatusConflict, message)
}

func Validation(message string) *Error {
	return New(KindValidationFailed, http.StatusBadRequest, message)
}

func CatalogUnavailable(err error) *Error {
	return Wrap(KindCatalogUnavailable, http.StatusServiceUnavailable, "catalog lookup failed", err)
}

func AlreadyConverted(message string) *Error {
	return New(KindAlreadyConverted, http.StatusConflict, message)
}

func AlreadyTerminal(message string) *Error {
	return New(KindAlreadyTerminal, http.StatusConflict, message)
}

func RequiresAuthorization(message string) *Error {
	return New(KindRequiresAuthorization, http.StatusForbidden, message)
}

func SessionExpired(message string) *Error {
	return New(KindSessionExpired, http.StatusGone, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, http.StatusNotFound, message)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, http.StatusInternalServerError, message, err)
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// AsError converts any error to an *Error, defaulting to an internal error.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}
