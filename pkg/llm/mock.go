package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a testing implementation of Provider.
// It records the last request it received.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	mu   sync.Mutex
	last *ChatRequest
	n    int
}

// Chat returns the configured response or error.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.last = &req
	m.n++
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     10,
			CompletionTokens: 10,
			TotalTokens:      20,
		},
	}, nil
}

// LastRequest returns the most recent request, or nil before the first call.
func (m *MockProvider) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Calls returns how many times Chat has been invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

// FailingMockProvider always fails.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, fmt.Errorf("mock error")
	}
	return nil, f.Err
}
