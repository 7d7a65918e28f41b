package heapchart

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common conditions.
// Use errors.Is() to check for these errors.
var (
	// ErrNotFound indicates the requested user, library or floor does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation:
	// - a user, library or floor with the same name already exists
	ErrConflict = errors.New("conflict")

	// ErrBadRequest indicates malformed or invalid input.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("access denied")
)

// errorCode represents an internal error code for HTTP status mapping.
// This is not exported - use sentinel errors for error checking.
type errorCode string

const (
	codeBadRequest   errorCode = "bad_request"
	codeUnauthorized errorCode = "unauthorized"
	codeForbidden    errorCode = "forbidden"
	codeNotFound     errorCode = "not_found"
	codeConflict     errorCode = "conflict"
	codeInternal     errorCode = "internal"
)

// httpStatus returns the HTTP status code for an error code.
func (c errorCode) httpStatus() int {
	switch c {
	case codeBadRequest:
		return http.StatusBadRequest
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeForbidden:
		return http.StatusForbidden
	case codeNotFound:
		return http.StatusNotFound
	case codeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// appError is an error with a code, serialized as JSON in HTTP responses.
type appError struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *appError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is implements errors.Is for sentinel error matching.
func (e *appError) Is(target error) bool {
	switch e.Code {
	case codeNotFound:
		return target == ErrNotFound
	case codeConflict:
		return target == ErrConflict
	case codeBadRequest:
		return target == ErrBadRequest
	case codeUnauthorized:
		return target == ErrUnauthorized
	default:
		return false
	}
}

// newError creates a new application error.
func newError(code errorCode, message string) *appError {
	return &appError{
		Code:    code,
		Message: message,
	}
}

// badRequest is shorthand for a formatted codeBadRequest error.
func badRequest(format string, args ...any) *appError {
	return newError(codeBadRequest, fmt.Sprintf(format, args...))
}

// asAppError converts any error into an appError, mapping sentinel errors
// to their codes.
func asAppError(err error) *appError {
	var appErr *appError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return newError(codeNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return newError(codeConflict, err.Error())
	case errors.Is(err, ErrBadRequest):
		return newError(codeBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return newError(codeUnauthorized, err.Error())
	default:
		return newError(codeInternal, err.Error())
	}
}
