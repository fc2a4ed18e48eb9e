package mock

import (
	"context"
	"strings"
	"sync"
)

// MockSummarizer is a test double for ai.Summarizer.
// It allows custom behavior injection via function fields. Set the function
// fields before handing the mock to concurrent callers; the call count is
// safe under concurrent use.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, uses default truncation behavior.
	SummarizeFunc func(ctx context.Context, text string) (string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockSummarizer creates a mock summarizer with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockSummarizer().
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize produces a short deterministic digest of the input.
// Default behavior: the first 20 words of the text, prefixed so tests can
// tell a summary apart from the raw input.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}

	words := strings.Fields(text)
	if len(words) > 20 {
		words = words[:20]
	}
	return "summary: " + strings.Join(words, " "), nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockSummarizer) Reset() {
	m.mu.Lock()
	m.callCount = 0
	m.mu.Unlock()
	m.SummarizeFunc = nil
}
