package llm

import (
	"context"
	"sync"
)

// MockClient is a Client for tests and offline runs.
//
// It returns a fixed response, cycles through a list of responses, or
// delegates to a custom function. Calls are recorded.
type MockClient struct {
	mu        sync.Mutex
	response  string
	responses []string
	index     int
	err       error
	fn        func(ctx context.Context, req Request) (Response, error)

	// Calls records every request, in order.
	Calls []Request
}

// NewMockClient creates a mock that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response}
}

// WithResponses answers successive calls with responses, cycling when
// exhausted.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.index = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithGenerateFunc delegates every call to fn.
func (m *MockClient) WithGenerateFunc(fn func(ctx context.Context, req Request) (Response, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Generate implements Client.
func (m *MockClient) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn, err := m.fn, m.err
	text := m.response
	if len(m.responses) > 0 {
		text = m.responses[m.index%len(m.responses)]
		m.index++
	}
	m.mu.Unlock()

	if err != nil {
		return Response{}, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return Response{Text: text, Usage: EstimateUsage(req.Prompt, text)}, nil
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and rewinds the response list.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.index = 0
}
