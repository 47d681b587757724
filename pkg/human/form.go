package human

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

// FormPrompter asks questions with huh terminal forms.
type FormPrompter struct {
	in     io.Reader
	out    io.Writer
	render Renderer
}

// NewFormPrompter creates a form prompter reading keys from in.
func NewFormPrompter(in io.Reader, out io.Writer, opts ...Option) *FormPrompter {
	o := buildOptions(opts)
	return &FormPrompter{in: in, out: out, render: o.render}
}

// Confirm shows a yes/no form.
func (p *FormPrompter) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if err := p.run(ctx, field); err != nil {
		return false, err
	}
	return ok, nil
}

// Ask shows a multi-line text form. Enter submits.
func (p *FormPrompter) Ask(ctx context.Context, question string) (string, error) {
	var answer string
	field := huh.NewText().
		Title(question).
		Lines(4).
		Value(&answer)
	if err := p.run(ctx, field); err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// Show prints the title and the rendered document.
func (p *FormPrompter) Show(ctx context.Context, title, markdown string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := p.render(markdown)
	if err != nil {
		body = markdown
	}
	_, err = fmt.Fprintf(p.out, "\n%s\n\n%s\n", title, strings.TrimRight(body, "\n"))
	return err
}

func (p *FormPrompter) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithInput(p.in).
		WithOutput(p.out)

	err := form.RunWithContext(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, huh.ErrUserAborted):
		return ErrAborted
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("run form: %w", err)
	}
}
