package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	fencePattern = regexp.MustCompile("(?m)^```[a-zA-Z]*\\n|\\n```$")

	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// StripJSON removes Markdown code fences and surrounding prose, returning
// the outermost {...} object when one is present.
func StripJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// ParseJSON decodes generated text into T. Unknown fields are rejected and
// struct tags are checked with the validator, so output that does not match
// the expected shape fails instead of silently decoding to zero values.
func ParseJSON[T any](stage, text string) (T, error) {
	var out T

	raw := StripJSON(text)
	if strings.TrimSpace(raw) == "" {
		return out, newMalformed(stage, text, errors.New("empty JSON payload"))
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, newMalformed(stage, raw, fmt.Errorf("decode: %w", err))
	}
	if dec.More() {
		return out, newMalformed(stage, raw, errors.New("trailing data after JSON object"))
	}

	if err := validateValue(out); err != nil {
		return out, newMalformed(stage, raw, err)
	}
	return out, nil
}

// validateValue runs struct validation on structs and pointers to structs.
// Other kinds have nothing to validate.
func validateValue(v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return fmt.Errorf("validate: %w", err)
}
