package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

// bracePattern matches ${name}; name is alphanumeric or underscore.
var bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Template is a named prompt with ${var} placeholders.
//
// Rendering is a single pass over the template text: substituted values are
// never re-scanned, so source material containing "${...}" is inserted
// verbatim. Templates are immutable and safe for concurrent use.
type Template struct {
	name          string
	text          string
	vars          []string
	missingAction MissingAction
}

// New parses text into a Template. Missing variables fail rendering unless
// configured otherwise with WithMissingAction.
func New(name, text string, opts ...Option) *Template {
	t := &Template{
		name:          name,
		text:          text,
		missingAction: MissingError,
	}
	for _, opt := range opts {
		opt(t)
	}

	seen := make(map[string]bool)
	for _, m := range bracePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			t.vars = append(t.vars, m[1])
		}
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// Vars returns the placeholder names in order of first appearance.
func (t *Template) Vars() []string {
	out := make([]string, len(t.vars))
	copy(out, t.vars)
	return out
}

// Render substitutes vars into the template.
//
// Strings are inserted as-is, string slices one per line, and other values
// that are not scalars as indented JSON.
func (t *Template) Render(vars map[string]any) (string, error) {
	var (
		missing []string
		errs    []error
	)

	out := bracePattern.ReplaceAllStringFunc(t.text, func(match string) string {
		name := match[2 : len(match)-1]
		val, ok := vars[name]
		if !ok {
			switch t.missingAction {
			case MissingEmpty:
				return ""
			case MissingError:
				if !slices.Contains(missing, name) {
					missing = append(missing, name)
				}
			}
			return match
		}
		s, err := format(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return match
		}
		return s
	})

	if len(missing) > 0 {
		return out, &UndefinedVariableError{Template: t.name, Names: missing}
	}
	if len(errs) > 0 {
		return out, fmt.Errorf("prompt %s: %w", t.name, errs[0])
	}
	return out, nil
}

// MustRender renders and panics on error. Use it only when vars are built
// from the template's own Vars.
func (t *Template) MustRender(vars map[string]any) string {
	out, err := t.Render(vars)
	if err != nil {
		panic(fmt.Sprintf("prompt: %v", err))
	}
	return out
}

// format converts a value to its prompt text.
func format(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []string:
		return strings.Join(val, "\n"), nil
	case fmt.Stringer:
		return val.String(), nil
	case bool, int, int64, float64:
		return fmt.Sprint(val), nil
	default:
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// UndefinedVariableError is returned when placeholders have no value.
type UndefinedVariableError struct {
	// Template is the name of the template being rendered.
	Template string
	// Names lists the undefined variables in order of appearance.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	if len(names) == 1 {
		return fmt.Sprintf("prompt %s: undefined variable: %s", e.Template, names[0])
	}
	return fmt.Sprintf("prompt %s: undefined variables: %s", e.Template, strings.Join(names, ", "))
}
