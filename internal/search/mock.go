package search

import (
	"context"
	"sync"

	"newsmosaic/internal/core"
)

// MockProvider returns scripted results for tests.
type MockProvider struct {
	mu      sync.Mutex
	Results map[string][]core.RawArticle // keyed by query
	Default []core.RawArticle
	Err     error
	Queries []string
}

// NewMockProvider returns an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{Results: map[string][]core.RawArticle{}}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Search(ctx context.Context, query string, cfg Config) ([]core.RawArticle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Queries = append(p.Queries, query)
	if p.Err != nil {
		return nil, p.Err
	}
	if results, ok := p.Results[query]; ok {
		return results, nil
	}
	return p.Default, nil
}
