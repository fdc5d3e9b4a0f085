package network

import (
	"errors"
	"strings"
)

// Sentinel errors for network operations.
var (
	// ErrGateNotFound indicates the gate code is unknown to the API.
	ErrGateNotFound = errors.New("gate not found")
	// ErrNoRouteFound indicates the API has no route between the given gates.
	ErrNoRouteFound = errors.New("no route found between the given gates")
	// ErrUnavailable indicates the API is down, unreachable or the circuit breaker is open.
	ErrUnavailable = errors.New("gate network API unavailable")
	// ErrRateLimited indicates the API quota has been exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("API key rejected")
	// ErrInvalidResponse indicates the API answered with a body that could not be decoded.
	ErrInvalidResponse = errors.New("invalid API response")
	// ErrTimeout indicates the request exceeded the client deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrValidation indicates the request was rejected before reaching the network.
	ErrValidation = errors.New("validation failed")
)

// Error provides detailed error information from the gateway.
type Error struct {
	Provider   string // Provider that generated the error
	Code       string // Machine readable error code
	Message    string // Human-readable error message
	StatusCode int    // HTTP status, zero when no response was received
	Err        error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrUnavailable) ||
		errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrTimeout)
}

// IsRetryable reports whether err is a transient gateway failure.
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.IsRetryable()
	}
	return false
}

// FieldError describes a rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned before any network call when the input is unusable.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidation.Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Field+" "+fe.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
