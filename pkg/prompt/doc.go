/*
Package prompt renders named prompt templates with ${var} placeholders.

	intake := prompt.New("intake", "Summarize:\n${sources}\nTemplate:\n${sections}")
	text, err := intake.Render(map[string]any{
	    "sources":  sourceTexts,       // []string, one per line
	    "sections": templateSections,  // rendered as indented JSON
	})

Missing variables are an error by default, so a renamed placeholder fails
loudly instead of sending a prompt with a literal "${...}" in it.

Only the ${name} form is recognized. A bare "$" and JSON braces in the
template text pass through untouched.
*/
package prompt
