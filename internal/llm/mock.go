package llm

import (
	"context"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Text  string
	Usage Usage
	Err   error
}

// MockProvider returns canned responses in FIFO order and records every
// request. An empty queue answers ErrProviderUnavailable.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
	purposes  []string
}

func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)
	m.purposes = append(m.purposes, PurposeFrom(ctx))

	if len(m.responses) == 0 {
		return nil, &ErrProviderUnavailable{}
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Text:       resp.Text,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Purposes returns the purpose label of every call so far.
func (m *MockProvider) Purposes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.purposes...)
}

// BenchProvider answers by purpose label and never fails. The daemon uses it
// for "mock" so the appliance can run a full cycle without a model server.
type BenchProvider struct {
	replies map[string]string
}

func NewBenchProvider() *BenchProvider {
	return &BenchProvider{replies: map[string]string{
		"word-of-day": "EBULLIENT|ih-BUL-yuhnt|Cheerful and full of energy.|She was ebullient after hearing the news.",
		"etymology":   "From Latin ebullire, to bubble out, via the image of boiling over with enthusiasm.",
	}}
}

// Set overrides the reply for a purpose.
func (b *BenchProvider) Set(purpose, text string) {
	b.replies[purpose] = text
}

func (b *BenchProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, ok := b.replies[PurposeFrom(ctx)]
	if !ok {
		return nil, &ErrProviderUnavailable{}
	}
	return &Response{Text: text, Model: "bench", StopReason: "end"}, nil
}

func (b *BenchProvider) ModelID() string {
	return "bench"
}
