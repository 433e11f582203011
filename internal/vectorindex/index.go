// Package vectorindex stores article-chunk embeddings and serves top-K
// cosine-similarity queries.
package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"newsmosaic/internal/llm"
)

// Record is one (article, chunk) embedding. Re-upserting the same pair
// overwrites the prior vector.
type Record struct {
	ArticleID  string
	ChunkIndex int
	Vector     []float64
	Content    string
	Metadata   map[string]string
}

// key returns the content address of the record.
func (r Record) key() string {
	return fmt.Sprintf("%s_%d", r.ArticleID, r.ChunkIndex)
}

// Scored is one query hit.
type Scored struct {
	ArticleID  string
	ChunkIndex int
	Score      float64
	Content    string
	Metadata   map[string]string
}

// Index is the vector-retrieval port.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float64, topK int) ([]Scored, error)
	DeleteArticle(ctx context.Context, articleID string) error
	Close() error
}

// MemoryIndex is an in-process Index for tests and small deployments.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryIndex returns an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: map[string]Record{}}
}

func (m *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.records[rec.key()] = rec
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float64, topK int) ([]Scored, error) {
	if topK <= 0 {
		topK = 5
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scored := make([]Scored, 0, len(m.records))
	for _, rec := range m.records {
		scored = append(scored, Scored{
			ArticleID:  rec.ArticleID,
			ChunkIndex: rec.ChunkIndex,
			Score:      llm.CosineSimilarity(vector, rec.Vector),
			Content:    rec.Content,
			Metadata:   rec.Metadata,
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (m *MemoryIndex) DeleteArticle(ctx context.Context, articleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.records {
		if rec.ArticleID == articleID {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *MemoryIndex) Close() error { return nil }

// Len reports the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
