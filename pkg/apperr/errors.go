// Package apperr defines the error taxonomy shared by the provisioning core and
// the HTTP layer: caller-fixable BAD_REQUEST, NOT_FOUND, and INTERNAL_SERVER_ERROR
// for everything else.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code categorizes an error for callers
type Code string

const (
	CodeBadRequest Code = "BAD_REQUEST"
	CodeNotFound   Code = "NOT_FOUND"
	CodeInternal   Code = "INTERNAL_SERVER_ERROR"
)

// Error is a categorized application error
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given code and message
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// BadRequestf creates a BAD_REQUEST error with a formatted message
func BadRequestf(format string, args ...interface{}) *Error {
	return New(CodeBadRequest, fmt.Sprintf(format, args...))
}

// NotFoundf creates a NOT_FOUND error with a formatted message
func NotFoundf(format string, args ...interface{}) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Internal wraps err as an INTERNAL_SERVER_ERROR
func Internal(err error, message string) *Error {
	return Wrap(CodeInternal, err, message)
}

// CodeOf returns the code of the first *Error in err's chain.
// Uncategorized errors are internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code to its HTTP status
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
