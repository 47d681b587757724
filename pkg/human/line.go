package human

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// LinePrompter reads answers one line at a time.
type LinePrompter struct {
	in     *bufio.Reader
	out    io.Writer
	render Renderer
}

// NewLinePrompter creates a prompter over in and out.
func NewLinePrompter(in io.Reader, out io.Writer, opts ...Option) *LinePrompter {
	o := buildOptions(opts)
	return &LinePrompter{
		in:     bufio.NewReader(in),
		out:    out,
		render: o.render,
	}
}

// Confirm treats "y" and "yes" (any case) as yes and anything else as no.
func (p *LinePrompter) Confirm(ctx context.Context, question string) (bool, error) {
	answer, err := p.prompt(ctx, question+" (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Ask returns the trimmed line the person typed.
func (p *LinePrompter) Ask(ctx context.Context, question string) (string, error) {
	return p.prompt(ctx, question+" ")
}

// Show prints the title and the rendered document.
func (p *LinePrompter) Show(ctx context.Context, title, markdown string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := p.render(markdown)
	if err != nil {
		body = markdown
	}
	_, err = fmt.Fprintf(p.out, "\n===== %s =====\n%s\n", title, strings.TrimRight(body, "\n"))
	return err
}

func (p *LinePrompter) prompt(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(p.out, text); err != nil {
		return "", err
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		if err == io.EOF {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
