// Package errors defines the error kinds shared across the search service
// and their mapping to wire-protocol error codes.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks a malformed frame or JSON payload.
	ErrParse = errors.New("parse error")
	// ErrUnsupported marks an unknown message type.
	ErrUnsupported = errors.New("unsupported message type")
	// ErrNotFound marks a missing docid, term, or dictionary entry.
	ErrNotFound = errors.New("not found")
	// ErrIO marks a socket or file failure.
	ErrIO = errors.New("io error")
	// ErrInternal marks an unexpected failure, including recovered panics.
	ErrInternal = errors.New("internal error")
)

// Wire-protocol error codes carried in 0x9001 frames.
const (
	CodeBadRequest = 400
	CodeNotFound   = 404
	CodeInternal   = 500
)

// AppError wraps a sentinel with a message and the wire code to report.
type AppError struct {
	Err     error
	Message string
	Code    int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError from a sentinel, wire code, and message.
func New(sentinel error, code int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, Code: code}
}

// Newf is New with fmt-style formatting.
func Newf(sentinel error, code int, format string, args ...any) *AppError {
	return &AppError{Err: sentinel, Message: fmt.Sprintf(format, args...), Code: code}
}

// WireCode returns the error code to place in a 0x9001 response.
func WireCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrParse):
		return CodeBadRequest
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}
