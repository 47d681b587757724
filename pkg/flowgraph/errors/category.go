// Package errors classifies failures and retries transient ones.
//
// Categories drive two decisions: whether a transport call is retried with
// backoff, and which exit status the CLI reports.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, timeouts, 5xx responses.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, invalid configuration.
	CategoryPermanent

	// CategoryMalformed indicates delegated output could not be parsed or
	// failed validation. Never retried.
	CategoryMalformed

	// CategoryHumanRequired indicates a person has to act before the run
	// can succeed, such as a review loop that never converges.
	CategoryHumanRequired

	// CategoryCancelled indicates the caller cancelled or the deadline expired.
	CategoryCancelled
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryMalformed:
		return "malformed"
	case CategoryHumanRequired:
		return "human_required"
	case CategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Categorizer is implemented by errors that know their own category.
type Categorizer interface {
	Category() Category
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient marks err as retryable.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent marks err as not retryable.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Categorize determines how an error should be handled.
// The outermost classification in the chain wins.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var self Categorizer
	if errors.As(err, &self) {
		return self.Category()
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryCancelled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
