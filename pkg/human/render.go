package human

import (
	"github.com/charmbracelet/glamour"
)

// Renderer turns Markdown into display text.
type Renderer func(markdown string) (string, error)

// GlamourRenderer renders Markdown for a terminal with glamour.
// If the renderer cannot be built the Markdown is shown unchanged.
func GlamourRenderer() Renderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return plain
	}
	return r.Render
}

func plain(markdown string) (string, error) {
	return markdown, nil
}

// Option configures a prompter.
type Option func(*options)

type options struct {
	render Renderer
}

// WithRenderer sets how Show renders Markdown.
func WithRenderer(r Renderer) Option {
	return func(o *options) {
		if r != nil {
			o.render = r
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{render: plain}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
