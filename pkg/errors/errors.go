package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for the processing pipeline taxonomy
const (
	CodeInvalidMessage    = "INVALID_MESSAGE"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeQueueFull         = "QUEUE_FULL"
	CodeStoreError        = "STORE_ERROR"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewInvalidMessageError creates a 400 error for malformed input
func NewInvalidMessageError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeInvalidMessage, message)
}

// NewRateLimitError creates a 429 error for admission-control rejections
func NewRateLimitError(message string) *AppError {
	return NewError(http.StatusTooManyRequests, CodeRateLimitExceeded, message)
}

// NewQueueFullError creates a 503 error signalling backpressure to the caller
func NewQueueFullError(message string) *AppError {
	return NewError(http.StatusServiceUnavailable, CodeQueueFull, message)
}

// NewStoreError creates a transient persistence error. Not surfaced to
// callers until the retry policy is exhausted.
func NewStoreError(err error) *AppError {
	return NewError(http.StatusBadGateway, CodeStoreError, "conversation store unavailable").WithCause(err)
}

// NewUpstreamError creates a transient completion-service error. Not
// surfaced to callers until the retry policy is exhausted.
func NewUpstreamError(err error) *AppError {
	return NewError(http.StatusBadGateway, CodeUpstreamError, "completion service unavailable").WithCause(err)
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewUnauthorizedError creates a 401 Unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return NewError(http.StatusUnauthorized, CodeUnauthorized, message)
}

// NewForbiddenError creates a 403 error for conversation access by a non-owner
func NewForbiddenError(message string) *AppError {
	return NewError(http.StatusForbidden, CodeForbidden, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *AppError {
	return NewError(http.StatusConflict, CodeConflict, message)
}

// NewInternalError creates a 500 error with a generic caller-facing message
func NewInternalError(err error) *AppError {
	return NewError(http.StatusInternalServerError, CodeInternal, "internal server error").WithCause(err)
}

// FromError converts any error into an AppError, defaulting to Internal
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(err)
}

// IsTransient reports whether the error participates in the retry policy.
// Only store and upstream failures are retried; validation, admission and
// backpressure errors fail fast.
func IsTransient(err error) bool {
	appErr := FromError(err)
	return appErr.Code == CodeStoreError || appErr.Code == CodeUpstreamError
}

// IsCode checks whether err carries the given taxonomy code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}
