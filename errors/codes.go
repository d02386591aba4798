package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Probe errors (retryable, contained in the health monitor)
const (
	// ErrCodeProbeTimeout indicates a health probe exceeded its deadline.
	ErrCodeProbeTimeout ErrorCode = "PROBE_TIMEOUT"
	// ErrCodeProbeConnection indicates a health probe failed to connect.
	ErrCodeProbeConnection ErrorCode = "PROBE_CONNECTION_FAILED"
)

// Admission errors
const (
	// ErrCodeRateLimited indicates the request was rejected by admission control.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeCircuitOpen indicates the primary provider's circuit breaker is open.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
)

// Configuration errors
const (
	// ErrCodeUnknownProvider indicates a provider name that is not registered.
	ErrCodeUnknownProvider ErrorCode = "UNKNOWN_PROVIDER"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeUpstreamUnavailable indicates no provider could serve the request.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeProbeTimeout:        true,
	ErrCodeProbeConnection:     true,
	ErrCodeRateLimited:         true,
	ErrCodeCircuitOpen:         true,
	ErrCodeUpstreamUnavailable: true,
	ErrCodeUnknownProvider:     false,
	ErrCodeInvalidInput:        false,
	ErrCodeInternal:            false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
