// Package errors provides structured error types for the decision engine.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrDenied           = errors.New("access denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyResponded = errors.New("suggestion already responded")
	ErrNotImplemented   = errors.New("not implemented")
	ErrNotRunning       = errors.New("experiment not running")
	ErrTimeout          = errors.New("operation timed out")
	ErrRateLimit        = errors.New("rate limit exceeded")
	ErrUnavailable      = errors.New("service unavailable")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// IsRetryable returns true if the error is likely transient and worth retrying:
// network failures, 5xx/429 API responses, timeouts, rate limits. Validation,
// ownership and not-implemented failures are never retryable, nor is a
// canceled context.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}

	// Connection resets, refusals and dial timeouts. *url.Error from an
	// http.Client satisfies net.Error too.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// IsPermanent reports errors that callers must not retry at any layer:
// unimplemented appliers and rejected operations.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotImplemented) ||
		errors.Is(err, ErrAlreadyResponded) ||
		errors.Is(err, ErrDenied) ||
		errors.Is(err, ErrInvalidInput)
}
