// Package apperr defines the closed set of request-failure kinds and the
// error value every service and middleware returns to the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

// Kind classifies a request failure. Each kind is bound to one status code.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
)

var kindStatus = map[Kind]int{
	KindBadRequest:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindInternal:     http.StatusInternalServerError,
}

// Status returns the HTTP status code bound to the kind.
func (k Kind) Status() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// String returns the default message for the kind.
func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "Bad Request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindNotFound:
		return "Not Found"
	default:
		return "Internal Server Error"
	}
}

// Error is a typed request failure.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Violations) > 0 {
		msg = strings.Join(e.Violations, "; ")
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error.
func (e *Error) Status() int {
	return e.Kind.Status()
}

func newError(kind Kind, message string) *Error {
	if message == "" {
		message = kind.String()
	}
	return &Error{Kind: kind, Message: message}
}

// BadRequest reports invalid input. A single violation doubles as the message.
func BadRequest(violations ...string) *Error {
	e := newError(KindBadRequest, "")
	if len(violations) == 1 {
		e.Message = violations[0]
	}
	e.Violations = violations
	return e
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, message)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, message)
}

// Internal wraps an unexpected fault. The cause is kept for server-side
// logging and never rendered to clients.
func Internal(err error) *Error {
	e := newError(KindInternal, "")
	e.Err = err
	return e
}

// KindOf classifies any error. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From returns err as an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
