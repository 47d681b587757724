package errors

import (
	"fmt"
	"time"
)

// HTTPError represents a non-2xx response from a remote service.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string

	// RetryAfter is the server-requested delay (Retry-After header), if any.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Category classifies the status code.
func (e *HTTPError) Category() Category {
	switch {
	case e.StatusCode == 408, e.StatusCode == 429:
		return CategoryTransient
	case e.StatusCode >= 500:
		return CategoryTransient
	default:
		return CategoryPermanent
	}
}

// TimeoutError indicates an operation exceeded its deadline.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// Category reports timeouts as transient.
func (e *TimeoutError) Category() Category {
	return CategoryTransient
}
