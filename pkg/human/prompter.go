package human

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	fgerrors "github.com/randalmurphal/brdflow/pkg/flowgraph/errors"
)

// Prompter is how a run asks a person for a decision.
// Calls block until the person answers or ctx is done.
type Prompter interface {
	// Confirm asks a yes/no question.
	Confirm(ctx context.Context, question string) (bool, error)

	// Ask asks for free text. The answer is trimmed.
	Ask(ctx context.Context, question string) (string, error)

	// Show displays a Markdown document under a title.
	Show(ctx context.Context, title, markdown string) error
}

// ErrNoInput is returned when the input stream ends before an answer.
var ErrNoInput error = noInputError{}

// ErrAborted is returned when the person aborts an interactive form.
var ErrAborted = errors.New("human: prompt aborted")

type noInputError struct{}

func (noInputError) Error() string { return "human: no input available" }

// Category reports that a person has to supply the missing answer.
func (noInputError) Category() fgerrors.Category { return fgerrors.CategoryHumanRequired }

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Interactive picks a prompter for in and out: huh forms with glamour
// previews when in is a terminal, plain line prompts otherwise (piped
// input, CI).
func Interactive(in *os.File, out io.Writer) Prompter {
	if !IsTerminal(in) {
		return NewLinePrompter(in, out)
	}
	return NewFormPrompter(in, out, WithRenderer(GlamourRenderer()))
}
