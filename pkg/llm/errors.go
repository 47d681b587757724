package llm

import (
	"errors"
	"fmt"

	fgerrors "github.com/randalmurphal/brdflow/pkg/flowgraph/errors"
)

// Sentinel errors.
var (
	// ErrMalformedOutput indicates non-empty generated output that could not
	// be parsed into the expected shape. It is never retried.
	ErrMalformedOutput = errors.New("malformed generated output")

	// ErrNoChoices indicates the backend answered without any completion.
	ErrNoChoices = errors.New("response contained no choices")

	// ErrNilClient indicates a Policy was used without a Client.
	ErrNilClient = errors.New("llm client is nil")
)

// MalformedOutputError describes output that failed to parse or validate.
type MalformedOutputError struct {
	// Stage names the pipeline stage that requested the output.
	Stage string
	// Raw is the text that failed to parse, truncated for logging.
	Raw string
	// Err is the decode or validation failure.
	Err error
}

// maxRawExcerpt bounds how much of the offending output is kept.
const maxRawExcerpt = 200

func newMalformed(stage, raw string, err error) *MalformedOutputError {
	if len(raw) > maxRawExcerpt {
		raw = raw[:maxRawExcerpt]
	}
	return &MalformedOutputError{Stage: stage, Raw: raw, Err: err}
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: malformed output: %v: %q", e.Stage, e.Err, e.Raw)
	}
	return fmt.Sprintf("malformed output: %v: %q", e.Err, e.Raw)
}

// Unwrap returns ErrMalformedOutput and the underlying cause.
func (e *MalformedOutputError) Unwrap() []error {
	return []error{ErrMalformedOutput, e.Err}
}

// Category reports malformed output as non-retryable.
func (e *MalformedOutputError) Category() fgerrors.Category {
	return fgerrors.CategoryMalformed
}
