package ingest

import (
	"context"
	"testing"
	"time"

	"newsmosaic/internal/core"
	"newsmosaic/internal/fetch"
	"newsmosaic/internal/search"
	"newsmosaic/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *search.MockProvider, *fetch.MockFetcher, *store.Store) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	provider := search.NewMockProvider()
	fetcher := fetch.NewMockFetcher()
	fetcher.Default = "some article body text"

	engine := New(s, provider, fetcher, 3)
	engine.now = func() time.Time {
		return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	}
	return engine, provider, fetcher, s
}

func TestIngestSavesNewArticles(t *testing.T) {
	engine, provider, _, _ := newTestEngine(t)
	provider.Default = []core.RawArticle{
		{Title: "AI chip launch", URL: "https://example.com/a", Source: "Wire", Date: "2026-08-23"},
		{Title: "Second  story", URL: "https://example.com/b", Date: "3 hours ago"},
	}

	result := engine.Ingest(context.Background(), core.SearchRequest{
		Scope: "s1", Keywords: []string{"AI"},
	})

	if result.Status != "success" {
		t.Fatalf("status = %s (%s)", result.Status, result.Message)
	}
	if result.Found != 2 || result.Saved != 2 || result.Updated != 0 {
		t.Errorf("counts: found=%d saved=%d updated=%d", result.Found, result.Saved, result.Updated)
	}

	articles, _ := engine.ListArticles(context.Background(), "s1", 10)
	if len(articles) != 2 {
		t.Fatalf("stored %d articles, want 2", len(articles))
	}
	for _, a := range articles {
		if a.Date != "2026-08-23" && a.Date != "2026-08-24" {
			t.Errorf("unnormalized date %q", a.Date)
		}
		if a.Embedded {
			t.Error("new articles must start with embedded=false")
		}
	}
}

func TestIngestTitleWhitespaceNormalized(t *testing.T) {
	engine, provider, _, _ := newTestEngine(t)
	provider.Default = []core.RawArticle{
		{Title: "  Spaced\t\ttitle  here ", URL: "https://example.com/a"},
	}

	engine.Ingest(context.Background(), core.SearchRequest{Scope: "s1", Keywords: []string{"x"}})

	articles, _ := engine.ListArticles(context.Background(), "s1", 10)
	if len(articles) != 1 || articles[0].Title != "Spaced title here" {
		t.Errorf("title = %q", articles[0].Title)
	}
}

func TestIngestDedupAndKeywordMerge(t *testing.T) {
	engine, provider, _, _ := newTestEngine(t)
	provider.Default = []core.RawArticle{
		{Title: "Shared story", URL: "https://example.com/shared"},
	}
	ctx := context.Background()

	first := engine.Ingest(ctx, core.SearchRequest{Scope: "s1", Keywords: []string{"AI"}})
	if first.Saved != 1 {
		t.Fatalf("first ingest saved = %d", first.Saved)
	}

	// same keywords: no new rows, no update
	second := engine.Ingest(ctx, core.SearchRequest{Scope: "s1", Keywords: []string{"AI"}})
	if second.Saved != 0 || second.Updated != 0 {
		t.Errorf("repeat ingest: saved=%d updated=%d, want 0/0", second.Saved, second.Updated)
	}

	// new keyword: union grows, counts as updated
	third := engine.Ingest(ctx, core.SearchRequest{Scope: "s1", Keywords: []string{"芯片"}})
	if third.Saved != 0 || third.Updated != 1 {
		t.Errorf("merge ingest: saved=%d updated=%d, want 0/1", third.Saved, third.Updated)
	}

	articles, _ := engine.ListArticles(ctx, "s1", 10)
	if len(articles) != 1 {
		t.Fatalf("duplicate rows: %d", len(articles))
	}
	kws := articles[0].Keywords
	if len(kws) != 2 || kws[0] != "AI" || kws[1] != "芯片" {
		t.Errorf("merged keywords = %v", kws)
	}
}

func TestIngestSkipsEmptyBody(t *testing.T) {
	engine, provider, fetcher, _ := newTestEngine(t)
	fetcher.Default = ""
	provider.Default = []core.RawArticle{
		{Title: "Unfetchable", URL: "https://example.com/gone"},
	}

	result := engine.Ingest(context.Background(), core.SearchRequest{Scope: "s1", Keywords: []string{"x"}})
	if result.Saved != 0 || result.Skipped != 1 {
		t.Errorf("saved=%d skipped=%d, want 0/1", result.Saved, result.Skipped)
	}

	articles, _ := engine.ListArticles(context.Background(), "s1", 10)
	if len(articles) != 0 {
		t.Error("empty-body article must not be stored")
	}
}

func TestIngestValidation(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  core.SearchRequest
	}{
		{"missing scope", core.SearchRequest{Keywords: []string{"AI"}}},
		{"missing keywords", core.SearchRequest{Scope: "s1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Ingest(ctx, tt.req)
			if result.Status != "error" {
				t.Errorf("status = %s, want error", result.Status)
			}
		})
	}
}

func TestIngestEvictsBeforeSearch(t *testing.T) {
	engine, provider, _, s := newTestEngine(t)
	ctx := context.Background()

	stale := &core.Article{
		ID: "stale", Scope: "s1", Title: "Old", URL: "https://example.com/old",
		Date: "2026-08-19", Keywords: []string{"old"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := s.InsertArticle(ctx, stale); err != nil {
		t.Fatal(err)
	}

	provider.Default = nil
	engine.Ingest(ctx, core.SearchRequest{Scope: "s1", Keywords: []string{"new"}})

	articles, _ := engine.ListArticles(ctx, "s1", 10)
	if len(articles) != 0 {
		t.Error("article older than default expiry must be evicted before search")
	}
}

func TestRefreshReingestsExpiredKeywords(t *testing.T) {
	engine, provider, _, s := newTestEngine(t)
	ctx := context.Background()

	stale := &core.Article{
		ID: "stale", Scope: "s1", Title: "Old", URL: "https://example.com/old",
		Date: "2026-08-10", Keywords: []string{"量子计算", "AI"},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	if err := s.InsertArticle(ctx, stale); err != nil {
		t.Fatal(err)
	}
	provider.Default = []core.RawArticle{
		{Title: "Fresh quantum story", URL: "https://example.com/fresh", Date: "2026-08-24"},
	}

	if err := engine.Refresh(ctx, "s1", 3); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if len(provider.Queries) == 0 {
		t.Fatal("refresh issued no searches")
	}
	articles, _ := engine.ListArticles(ctx, "s1", 10)
	if len(articles) != 1 || articles[0].Title != "Fresh quantum story" {
		t.Errorf("articles after refresh: %+v", articles)
	}
}

func TestUnionKeywords(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		expected []string
		grew     bool
	}{
		{"adds new", []string{"a"}, []string{"b"}, []string{"a", "b"}, true},
		{"subset no growth", []string{"a", "b"}, []string{"a"}, []string{"a", "b"}, false},
		{"blank trimmed", []string{"a"}, []string{" ", "a "}, []string{"a"}, false},
		{"empty existing", nil, []string{"x"}, []string{"x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, grew := unionKeywords(tt.existing, tt.incoming)
			if grew != tt.grew {
				t.Errorf("grew = %v, want %v", grew, tt.grew)
			}
			if len(merged) != len(tt.expected) {
				t.Fatalf("merged = %v, want %v", merged, tt.expected)
			}
			for i := range merged {
				if merged[i] != tt.expected[i] {
					t.Errorf("merged[%d] = %q, want %q", i, merged[i], tt.expected[i])
				}
			}
		})
	}
}
