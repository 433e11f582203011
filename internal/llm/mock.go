package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a scripted ChatClient and Embedder for tests. Replies are
// matched by substring against the last message; unmatched prompts return
// Fallback.
type MockClient struct {
	mu       sync.Mutex
	Replies  map[string]string
	Fallback string
	Err      error
	Dim      int
	Calls    []string
}

// NewMockClient returns a mock with an empty script.
func NewMockClient() *MockClient {
	return &MockClient{Replies: map[string]string{}, Dim: 8}
}

func (m *MockClient) Chat(ctx context.Context, messages []Message, opts Options) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return Response{}, m.Err
	}

	var prompt string
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	m.Calls = append(m.Calls, prompt)

	for needle, reply := range m.Replies {
		if strings.Contains(prompt, needle) {
			return Response{Content: reply, TokensUsed: len(reply)}, nil
		}
	}
	return Response{Content: m.Fallback, TokensUsed: len(m.Fallback)}, nil
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := m.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}}, Options{})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Embed produces deterministic pseudo-vectors derived from text bytes, so
// identical texts embed identically within a test run.
func (m *MockClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, m.Dim)
		for j, r := range text {
			vec[j%m.Dim] += float64(r%31) + 1
		}
		out[i] = vec
	}
	return out, nil
}

func (m *MockClient) Dimension() int { return m.Dim }
