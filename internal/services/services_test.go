package services

import (
	"context"
	"testing"
	"time"

	"newsmosaic/internal/config"
	"newsmosaic/internal/core"
	"newsmosaic/internal/embedding"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/store"
	"newsmosaic/internal/vectorindex"
)

func TestIndexScope(t *testing.T) {
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock := llm.NewMockClient()
	index := vectorindex.NewMemoryIndex()
	bundle := &Bundle{
		DB:    db,
		Index: index,
		Embedding: embedding.NewService(mock, config.EmbeddingConfig{
			Model: "mock-embed", Dimension: 8, ChunkSize: 512, ChunkOverlap: 100, BatchSize: 10,
		}),
	}

	ctx := context.Background()
	now := time.Now().UTC()
	for _, a := range []*core.Article{
		{ID: "a1", Scope: "s1", Title: "新闻一", URL: "https://example.com/1",
			Date: "2026-08-24", Content: "第一篇正文", Keywords: []string{"测试"},
			CreatedAt: now, UpdatedAt: now},
		{ID: "a2", Scope: "s1", Title: "新闻二", URL: "https://example.com/2",
			Date: "2026-08-24", Content: "第二篇正文", Keywords: []string{"测试"},
			Embedded: true, CreatedAt: now, UpdatedAt: now},
	} {
		if err := db.InsertArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	indexed, err := bundle.IndexScope(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if indexed != 1 {
		t.Errorf("indexed = %d, want 1 (already-embedded article skipped)", indexed)
	}
	if index.Len() == 0 {
		t.Error("no vectors upserted")
	}

	a1, err := db.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if !a1.Embedded {
		t.Error("embedded flag not set after indexing")
	}

	// a second pass finds nothing left to do
	indexed, err = bundle.IndexScope(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if indexed != 0 {
		t.Errorf("second pass indexed = %d, want 0", indexed)
	}
}
