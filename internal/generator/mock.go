package generator

import (
	"context"
	"sync"
)

const defaultResponse = `{"status": "acknowledged"}`

// Mock is a scripted generator for tests and dry runs. It cycles through
// its queued responses, falling back to a fixed record when the queue is
// empty.
type Mock struct {
	mu        sync.Mutex
	responses []string
	idx       int
	prompts   []string
}

// NewMock creates a Mock that cycles through the given responses.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

// Name returns the provider identifier.
func (m *Mock) Name() string { return "mock" }

// Generate returns the next scripted response, recording the prompt so
// tests can assert on what the station rendered.
func (m *Mock) Generate(ctx context.Context, prompt string, _ Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if len(m.responses) == 0 {
		return defaultResponse, nil
	}
	resp := m.responses[m.idx%len(m.responses)]
	m.idx++
	return resp, nil
}

// Prompts returns a copy of every prompt seen so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
