package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Reliability Error Constructors ---

// ProbeTimeout creates a new AppError for a health probe that timed out.
func ProbeTimeout(provider string, timeout time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeProbeTimeout, Message: fmt.Sprintf("Health probe for %s timed out after %s.", provider, timeout),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"provider": provider, "timeout": timeout.String()},
	}
}

// ProbeConnectionFailed creates a new AppError for a health probe that could not connect.
func ProbeConnectionFailed(provider string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeProbeConnection, Message: fmt.Sprintf("Unable to reach provider %s.", provider),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"provider": provider}, Cause: cause,
	}
}

// RateLimitExceeded creates a new AppError for a rejected admission check.
// retryAfter is the wait before the key admits again; remaining is the
// unused request allowance in the current window.
func RateLimitExceeded(retryAfter time.Duration, remaining int) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{
			"retry_after_s": retryAfter.Seconds(),
			"remaining":     remaining,
		},
	}
}

// CircuitOpen creates a new AppError for an open circuit on the primary provider.
func CircuitOpen(provider string, retryAt time.Time) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("Provider %s is temporarily unavailable; using fallback.", provider),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"provider": provider, "retry_at": retryAt},
	}
}

// UnknownProvider creates a new AppError for an unregistered provider name.
// This indicates a misconfiguration and is never retried.
func UnknownProvider(name string) *AppError {
	return &AppError{
		Code: ErrCodeUnknownProvider, Message: fmt.Sprintf("Provider %q is not registered.", name),
		HTTPStatus: http.StatusInternalServerError, Retryable: false,
		Details: map[string]any{"provider": name},
	}
}

// UpstreamUnavailable creates a new AppError for the case where neither the
// primary nor the fallback provider can serve requests.
func UpstreamUnavailable() *AppError {
	return &AppError{
		Code: ErrCodeUpstreamUnavailable, Message: "No upstream provider is currently available. Please try again.",
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
