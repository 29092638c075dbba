// Package errors defines the service error taxonomy. Every error produced by
// the service layer carries an HTTP status so handlers can map failures
// uniformly without inspecting message text.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeNotReady     Code = "not_ready"
	CodeInternal     Code = "internal"
)

// Error is a categorised service error.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error for logging while keeping the
// outward message unchanged.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// HTTPStatus maps the error code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports missing or malformed request data.
func InvalidInput(format string, args ...interface{}) *Error {
	return newError(CodeInvalidInput, format, args...)
}

// Unauthorized reports failed authentication or a bad token.
func Unauthorized(format string, args ...interface{}) *Error {
	return newError(CodeUnauthorized, format, args...)
}

// Forbidden reports an authenticated identity lacking the required role.
func Forbidden(format string, args ...interface{}) *Error {
	return newError(CodeForbidden, format, args...)
}

// NotFound reports an absent resource.
func NotFound(format string, args ...interface{}) *Error {
	return newError(CodeNotFound, format, args...)
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...interface{}) *Error {
	return newError(CodeConflict, format, args...)
}

// NotReady reports that storage is still initialising; clients may retry.
func NotReady(format string, args ...interface{}) *Error {
	return newError(CodeNotReady, format, args...)
}

// Internal wraps an unexpected failure behind a generic message.
func Internal(err error) *Error {
	e := newError(CodeInternal, "internal error")
	e.cause = err
	return e
}

// StatusOf extracts the HTTP status for err, defaulting to 500 for errors
// outside the taxonomy.
func StatusOf(err error) int {
	var se *Error
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err belongs to the given category.
func IsCode(err error, code Code) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
