package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when a call is still throttled after all attempts.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of failed calls.
type ErrorClass string

const (
	// ErrorClassThrottled represents 429 responses. Only these are retried.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassUnrecoverable represents any other non-200 response.
	ErrorClassUnrecoverable ErrorClass = "unrecoverable"

	// ErrorClassNetwork represents failures where no response was received.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is a failed catalog call.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error: %v", e.Class, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("catalog %s error (status %d): %s", e.Class, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("catalog %s error (status %d)", e.Class, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Classify returns the class of err, or "" when err is not an APIError.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return ""
}

// IsUnrecoverable reports whether err came from a non-200, non-429 response.
// Retry exhaustion is never unrecoverable in this sense: it is terminal.
func IsUnrecoverable(err error) bool {
	return Classify(err) == ErrorClassUnrecoverable && !errors.Is(err, ErrRetryExhausted)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	return errorClass == ErrorClassThrottled
}
