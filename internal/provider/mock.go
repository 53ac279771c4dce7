package provider

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests and offline runs. Responses are
// consumed in order; when the script is exhausted the last entry repeats.
type MockClient struct {
	mu        sync.Mutex
	script    []MockTurn
	callCount int

	// Prompts records every prompt seen, for assertions.
	Prompts []string
}

// MockTurn is one scripted response.
type MockTurn struct {
	Response string
	Err      error
}

// NewMockClient creates a mock that always returns response.
func NewMockClient(response string) *MockClient {
	return &MockClient{script: []MockTurn{{Response: response}}}
}

// NewScriptedClient creates a mock that plays through turns in order.
func NewScriptedClient(turns ...MockTurn) *MockClient {
	return &MockClient{script: turns}
}

// Complete returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem returns the next scripted response.
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(NameMock, ErrKindTransport, "context cancelled", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Prompts = append(m.Prompts, userPrompt)
	idx := m.callCount
	m.callCount++
	if len(m.script) == 0 {
		return "", newError(NameMock, ErrKindEmpty, "no scripted response", nil)
	}
	if idx >= len(m.script) {
		idx = len(m.script) - 1
	}
	turn := m.script[idx]
	if turn.Err != nil {
		return "", turn.Err
	}
	return turn.Response, nil
}

// CallCount returns how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
