package fetch

import "context"

// MockFetcher returns scripted bodies for tests.
type MockFetcher struct {
	Bodies  map[string]string // keyed by URL
	Default string
	Fetched []string
}

// NewMockFetcher returns an empty mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{Bodies: map[string]string{}}
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) string {
	m.Fetched = append(m.Fetched, url)
	if body, ok := m.Bodies[url]; ok {
		return body
	}
	return m.Default
}
