package prompt

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError fails rendering with an UndefinedVariableError.
	// This is the default behavior.
	MissingError MissingAction = iota

	// MissingKeep leaves the placeholder as-is.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// Option configures a Template.
type Option func(*Template)

// WithMissingAction sets how missing variables are handled.
//
// Example:
//
//	t := prompt.New("draft", "Hello ${name}", prompt.WithMissingAction(prompt.MissingKeep))
//	out, _ := t.Render(nil)
//	// out: "Hello ${name}"
func WithMissingAction(action MissingAction) Option {
	return func(t *Template) {
		t.missingAction = action
	}
}
