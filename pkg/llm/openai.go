package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	fgerrors "github.com/randalmurphal/brdflow/pkg/flowgraph/errors"
)

const chatCompletionsEndpoint = "/chat/completions"

// OpenAIClient implements Client against an OpenAI-compatible chat
// completions endpoint.
//
// Authentication uses either a static API key or a TokenSource; with a
// TokenSource a 401 response invalidates the cached token and the request
// is repeated once. Rate limits (429) and server errors (5xx) are retried
// with backoff, honoring Retry-After.
type OpenAIClient struct {
	api     *openai.Client
	model   string
	tokens  *TokenSource
	limiter *rate.Limiter
	retry   fgerrors.RetryConfig
	logger  *slog.Logger
}

type openAIOptions struct {
	baseURL    string
	apiKey     string
	tokens     *TokenSource
	rpm        int
	retry      fgerrors.RetryConfig
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*openAIOptions)

// WithBaseURL points the client at a compatible gateway, e.g.
// "https://gateway.internal/model-as-a-service".
func WithBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithAPIKey sets a static bearer key.
func WithAPIKey(key string) OpenAIOption {
	return func(o *openAIOptions) { o.apiKey = key }
}

// WithTokenSource authenticates each request with a fetched token.
// It takes precedence over WithAPIKey.
func WithTokenSource(ts *TokenSource) OpenAIOption {
	return func(o *openAIOptions) { o.tokens = ts }
}

// WithRequestsPerMinute limits request rate. Zero disables the limit.
func WithRequestsPerMinute(n int) OpenAIOption {
	return func(o *openAIOptions) { o.rpm = n }
}

// WithTransportRetry overrides the retry policy for 429 and 5xx responses.
// Default: errors.TransportRetry.
func WithTransportRetry(cfg fgerrors.RetryConfig) OpenAIOption {
	return func(o *openAIOptions) { o.retry = cfg }
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// for authentication.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *openAIOptions) { o.httpClient = c }
}

// WithRequestTimeout bounds a single HTTP request. Default: 60s.
func WithRequestTimeout(d time.Duration) OpenAIOption {
	return func(o *openAIOptions) { o.timeout = d }
}

// WithClientLogger logs transport retries.
func WithClientLogger(l *slog.Logger) OpenAIOption {
	return func(o *openAIOptions) { o.logger = l }
}

// NewOpenAIClient creates a client for model.
func NewOpenAIClient(model string, opts ...OpenAIOption) *OpenAIClient {
	o := openAIOptions{
		retry:   fgerrors.TransportRetry,
		timeout: 60 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	base := http.DefaultTransport
	if o.httpClient != nil && o.httpClient.Transport != nil {
		base = o.httpClient.Transport
	}
	timeout := o.timeout
	if o.httpClient != nil && o.httpClient.Timeout > 0 {
		timeout = o.httpClient.Timeout
	}

	cfg := openai.DefaultConfig(o.apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	cfg.HTTPClient = &http.Client{
		Transport: &authTransport{base: base, tokens: o.tokens},
		Timeout:   timeout,
	}

	c := &OpenAIClient{
		api:    openai.NewClientWithConfig(cfg),
		model:  model,
		tokens: o.tokens,
		retry:  o.retry,
		logger: o.logger,
	}
	if o.rpm > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(o.rpm)), 1)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, err error, wait time.Duration) {
			c.logger.Warn("retrying generation",
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("err", err.Error()),
			)
		}
	}
	return c
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	res := fgerrors.WithRetryContext(ctx, c.retry, func(ctx context.Context) (Response, error) {
		return c.generateOnce(ctx, req)
	})
	if res.Err != nil {
		return Response{}, fmt.Errorf("generate: %w", res.Err)
	}
	return res.Value, nil
}

func (c *OpenAIClient) generateOnce(ctx context.Context, req Request) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxCompletionTokens: req.MaxTokens,
	}

	reauthed := false
	for {
		hint := &retryHint{}
		resp, err := c.api.CreateChatCompletion(context.WithValue(ctx, retryHintKey{}, hint), chatReq)
		if err != nil {
			httpErr := asHTTPError(err, hint.get())
			if httpErr == nil {
				return Response{}, err
			}
			if httpErr.StatusCode == http.StatusUnauthorized && c.tokens != nil && !reauthed {
				c.tokens.Invalidate()
				reauthed = true
				continue
			}
			return Response{}, httpErr
		}

		if len(resp.Choices) == 0 {
			return Response{}, ErrNoChoices
		}
		text := resp.Choices[0].Message.Content

		usage := Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		if usage.TotalTokens == 0 {
			usage = EstimateUsage(req.Prompt, text)
		}
		return Response{Text: text, Usage: usage}, nil
	}
}

// asHTTPError converts go-openai status errors so they classify for retry.
// It returns nil for errors without a status code.
func asHTTPError(err error, retryAfter time.Duration) *fgerrors.HTTPError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &fgerrors.HTTPError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Endpoint:   chatCompletionsEndpoint,
			RetryAfter: retryAfter,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := reqErr.HTTPStatus
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &fgerrors.HTTPError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Endpoint:   chatCompletionsEndpoint,
			RetryAfter: retryAfter,
		}
	}
	return nil
}

// retryHint carries a Retry-After value from the transport back to the
// request that triggered it.
type retryHint struct {
	mu sync.Mutex
	d  time.Duration
}

type retryHintKey struct{}

func (h *retryHint) set(d time.Duration) {
	h.mu.Lock()
	h.d = d
	h.mu.Unlock()
}

func (h *retryHint) get() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.d
}

// authTransport injects the bearer token and records Retry-After hints.
type authTransport struct {
	base   http.RoundTripper
	tokens *TokenSource
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req
	if t.tokens != nil {
		token, err := t.tokens.Token(req.Context())
		if err != nil {
			return nil, err
		}
		r = req.Clone(req.Context())
		r.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if hint, ok := req.Context().Value(retryHintKey{}).(*retryHint); ok {
			hint.set(parseRetryAfter(resp.Header.Get("Retry-After")))
		}
	}
	return resp, nil
}
