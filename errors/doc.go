// Package errors provides structured error handling for the llmguard core.
// It implements AppError with machine-readable codes, HTTP status mapping,
// and retryable detection.
//
// The reliability taxonomy:
//   - PROBE_TIMEOUT / PROBE_CONNECTION_FAILED: health probe failures,
//     contained inside the health monitor and represented as data.
//   - RATE_LIMITED: admission rejected; carries retry_after and remaining.
//   - CIRCUIT_OPEN: primary unavailable, fallback selected; loggable,
//     not necessarily an error for the caller.
//   - UNKNOWN_PROVIDER: misconfiguration, fatal, never retried.
package errors
