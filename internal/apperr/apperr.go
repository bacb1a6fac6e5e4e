// Package apperr defines the error taxonomy shared by every component:
// Validation, NotFound, Unavailable, Conflict, Internal. HTTP status
// mapping and retry semantics live alongside the taxonomy so handlers
// never have to re-derive them from an error string.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the five error categories the spec names.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindConflict    Kind = "conflict"
	KindInternal    Kind = "internal"
)

// Error wraps an underlying cause with a Kind and optional field list
// (populated for KindValidation).
type Error struct {
	Kind   Kind
	Msg    string
	Fields []string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}

func NotFound(msg string) *Error { return newErr(KindNotFound, msg, nil) }

func Unavailable(msg string, cause error) *Error { return newErr(KindUnavailable, msg, cause) }

func Conflict(msg string, cause error) *Error { return newErr(KindConflict, msg, cause) }

func Internal(msg string, cause error) *Error { return newErr(KindInternal, msg, cause) }

// KindOf extracts the Kind of err, defaulting to KindInternal for errors
// that were never wrapped by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusCode maps a Kind to the HTTP status the §7 taxonomy assigns it.
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether callers may retry the operation that produced
// an error of this kind.
func Retryable(kind Kind) bool {
	return kind == KindUnavailable || kind == KindConflict
}
