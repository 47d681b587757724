package llm

import (
	"context"
)

// Client generates text for a prompt.
//
// Implementations must be safe for concurrent use. Transport failures are
// returned as errors; an empty Text is a valid response that the Policy
// treats as a transient miss.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Request is a single-turn generation request.
type Request struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// Response is the generated text and the tokens it consumed.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// EstimateTokens approximates the token count of text at four bytes per
// token. Empty text counts as zero; anything else counts at least one.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return max(1, len(text)/4)
}

// EstimateUsage builds a Usage from the prompt and completion text, for
// backends that do not report token counts.
func EstimateUsage(prompt, completion string) Usage {
	p, c := EstimateTokens(prompt), EstimateTokens(completion)
	return Usage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}
