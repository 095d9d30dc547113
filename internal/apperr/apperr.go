// Package apperr defines the error taxonomy shared by the HTTP layer and the
// domain packages. Handlers translate these sentinel kinds into status codes
// (validation → 400, not found → 404, auth → 401/403, persistence → 500) so
// repositories and services never reach for net/http themselves.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP translation.
type Kind int

const (
	// KindInternal is the fallback for anything unclassified.
	KindInternal Kind = iota
	// KindValidation marks missing or malformed caller input.
	KindValidation
	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound
	// KindUnauthorized marks a missing or invalid credential.
	KindUnauthorized
	// KindForbidden marks a valid credential lacking the required role.
	KindForbidden
	// KindConflict marks a state transition the current state does not permit.
	KindConflict
	// KindPersistence marks a query or connection failure.
	KindPersistence
)

// Error is a classified application error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error with a formatted message.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error for the named entity.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %q not found", entity, id)}
}

// Unauthorized returns a KindUnauthorized error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

// Forbidden returns a KindForbidden error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Msg: msg}
}

// Conflict returns a KindConflict error with a formatted message.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage failure. The wrapped error is preserved for
// logging; the message is what callers may safely surface.
func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Msg: msg, Err: err}
}

// KindOf extracts the Kind from err, walking the wrap chain.
// Plain errors report KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status code used by the envelope
// helpers in internal/api/respond.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
