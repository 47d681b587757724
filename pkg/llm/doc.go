/*
Package llm delegates text generation and turns its output into typed values.

# Clients

Client is the single-turn contract the pipeline depends on:

	resp, err := client.Generate(ctx, llm.Request{Prompt: p, MaxTokens: 800})

OpenAIClient talks to any OpenAI-compatible chat completions endpoint. It
authenticates with a static key or a TokenSource, limits request rate, and
retries rate limits and server errors with backoff:

	ts := llm.NewTokenSource(authURL, clientID, clientSecret, nil)
	client := llm.NewOpenAIClient("gpt-5",
	    llm.WithBaseURL(baseURL),
	    llm.WithTokenSource(ts),
	    llm.WithRequestsPerMinute(30))

MockClient serves tests and offline runs.

# Retry and Fallback

Policy implements the rule every generating stage follows:

 1. Invoke once.
 2. On an empty response, invoke again with a stricter prefix.
 3. On a second empty response, use the stage's fallback value.
 4. Otherwise parse. Malformed output fails with MalformedOutputError.

	facts, outcome, err := llm.GenerateStructured(ctx, policy, "fact_extractor",
	    prompt, 1800, func() FactPack { return FactPack{} })

Parsing strips code fences and surrounding prose, rejects unknown fields, and
applies validate struct tags.

# Token Accounting

Usage is taken from the backend when reported and otherwise estimated with
EstimateTokens (four bytes per token).
*/
package llm
