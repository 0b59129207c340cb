// Package errors defines the sentinel errors shared by the index, the query
// engine and the HTTP surface, plus an AppError wrapper that carries a
// caller-facing message and HTTP status.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrFieldNotFound  = errors.New("field not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrCorruptSegment = errors.New("corrupt segment")
	ErrDocNotFound    = errors.New("document not found")
	ErrIndexClosed    = errors.New("index closed")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// SchemaMismatchf reports a query or document that does not fit the field it
// targets, e.g. a range query on a field that is neither INDEXED nor FAST.
func SchemaMismatchf(format string, args ...any) *AppError {
	return Newf(ErrSchemaMismatch, http.StatusBadRequest, format, args...)
}

// Corruptf reports a segment whose bytes could not be decoded.
func Corruptf(format string, args ...any) *AppError {
	return Newf(ErrCorruptSegment, http.StatusInternalServerError, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocNotFound), errors.Is(err, ErrFieldNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrSchemaMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrIndexClosed), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under its default name do not also need the standard library one.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
