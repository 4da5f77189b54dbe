// Package domain provides canonical types and error taxonomy for the webhook gateway.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a gateway error.
type ErrorType string

const (
	// ErrorTypeMissingAuthHeaders indicates one of the delivery headers was absent or empty.
	ErrorTypeMissingAuthHeaders ErrorType = "missing_auth_headers"

	// ErrorTypeInvalidSignature indicates the signature or timestamp did not verify.
	ErrorTypeInvalidSignature ErrorType = "invalid_signature"

	// ErrorTypeInvalidPayload indicates a malformed webhook body.
	ErrorTypeInvalidPayload ErrorType = "invalid_payload"

	// ErrorTypePayloadTooLarge indicates the body exceeded the configured limit.
	ErrorTypePayloadTooLarge ErrorType = "payload_too_large"

	// ErrorTypeContentFetchFailed indicates the email provider could not return content.
	// It is recovered locally and never surfaced to the webhook provider.
	ErrorTypeContentFetchFailed ErrorType = "content_fetch_failed"

	// ErrorTypeBackendUnavailable indicates the execution backend could not be reached.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"

	// ErrorTypeBackendRejected indicates the execution backend answered with a failure.
	ErrorTypeBackendRejected ErrorType = "backend_rejected"

	// ErrorTypeUnauthorized indicates an admin API key was missing or wrong.
	ErrorTypeUnauthorized ErrorType = "unauthorized"

	// ErrorTypeInternal is the catch-all.
	ErrorTypeInternal ErrorType = "internal"
)

// APIError represents a canonical gateway error that maps onto an HTTP status.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Message is the human-readable error message. It must never carry secret material.
	Message string `json:"message"`

	// StatusCode overrides the default status for Type when non-zero.
	StatusCode int `json:"-"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeMissingAuthHeaders, ErrorTypeInvalidSignature, ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeInvalidPayload:
		return http.StatusBadRequest
	case ErrorTypePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrorTypeBackendRejected, ErrorTypeContentFetchFailed:
		return http.StatusBadGateway
	case ErrorTypeBackendUnavailable, ErrorTypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// WithStatusCode sets a custom HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// WithCause attaches the underlying error.
func (e *APIError) WithCause(err error) *APIError {
	e.Err = err
	return e
}

// AsAPIError converts any error into an *APIError, wrapping unknown errors as internal.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Type: ErrorTypeInternal, Message: "internal server error", Err: err}
}

// IsType reports whether err is an *APIError of the given type.
func IsType(err error, errType ErrorType) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == errType
	}
	return false
}

// Common error constructors

// ErrMissingAuthHeaders creates the error returned when delivery headers are absent.
func ErrMissingAuthHeaders() *APIError {
	return NewAPIError(ErrorTypeMissingAuthHeaders, "missing webhook headers")
}

// ErrInvalidSignature creates an invalid signature error.
func ErrInvalidSignature(cause error) *APIError {
	return NewAPIError(ErrorTypeInvalidSignature, "invalid webhook signature").WithCause(cause)
}

// ErrInvalidPayload creates an invalid payload error.
func ErrInvalidPayload(cause error) *APIError {
	return NewAPIError(ErrorTypeInvalidPayload, "invalid payload").WithCause(cause)
}

// ErrPayloadTooLarge creates a payload size error.
func ErrPayloadTooLarge(limit int64) *APIError {
	return NewAPIError(ErrorTypePayloadTooLarge, fmt.Sprintf("payload exceeds %d bytes", limit))
}

// ErrContentFetchFailed creates a content fetch error carrying the upstream status.
func ErrContentFetchFailed(status int, cause error) *APIError {
	return NewAPIError(ErrorTypeContentFetchFailed, fmt.Sprintf("email content fetch failed (status %d)", status)).WithCause(cause)
}

// ErrBackendUnavailable creates a backend transport error.
func ErrBackendUnavailable(cause error) *APIError {
	return NewAPIError(ErrorTypeBackendUnavailable, "execution backend unavailable").WithCause(cause)
}

// ErrBackendRejected creates a backend failure error.
func ErrBackendRejected(status int) *APIError {
	return NewAPIError(ErrorTypeBackendRejected, fmt.Sprintf("function execution failed (status %d)", status))
}
