package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests.
type MockProvider struct {
	mu sync.Mutex

	// Response is returned on every call when Err is nil.
	Response Completion
	// Err is returned on every call when set.
	Err error
	// Requests records every request received.
	Requests []Request
}

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Completion, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	resp := m.Response
	return &resp, nil
}

// Calls returns the number of requests received.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

var _ Provider = (*MockProvider)(nil)
