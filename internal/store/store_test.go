package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsmosaic/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testArticle(scope, title, url string) *core.Article {
	now := time.Now().UTC()
	return &core.Article{
		ID:        core.ArticleID(title, url, scope),
		Scope:     scope,
		Title:     title,
		URL:       url,
		Source:    "Test Wire",
		Date:      "2026-08-20",
		Content:   "body text",
		Keywords:  []string{"AI"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestArticleInsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("s1", "Title A", "https://example.com/a")
	if err := s.InsertArticle(ctx, a); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := s.FindArticle(ctx, "s1", "Title A", "https://example.com/a")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.ID != a.ID || got.Content != "body text" || len(got.Keywords) != 1 {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	_, err = s.FindArticle(ctx, "s2", "Title A", "https://example.com/a")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound in other scope, got %v", err)
	}
}

func TestArticleScopeUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("s1", "Same Title", "https://example.com/same")
	if err := s.InsertArticle(ctx, a); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.InsertArticle(ctx, a); err == nil {
		t.Error("duplicate (scope, title, url) insert must fail")
	}

	// same article in a different scope is a separate row
	b := testArticle("s2", "Same Title", "https://example.com/same")
	if err := s.InsertArticle(ctx, b); err != nil {
		t.Errorf("cross-scope insert should succeed: %v", err)
	}
}

func TestUpdateArticleKeywords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("s1", "T", "https://example.com/t")
	if err := s.InsertArticle(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateArticleKeywords(ctx, a.ID, []string{"AI", "芯片"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.GetArticle(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Keywords) != 2 {
		t.Errorf("keywords = %v, want 2 entries", got.Keywords)
	}
}

func TestEvictionByDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := testArticle("s1", "Old", "https://example.com/old")
	old.Date = "2026-08-10"
	fresh := testArticle("s1", "Fresh", "https://example.com/fresh")
	fresh.Date = "2026-08-22"
	for _, a := range []*core.Article{old, fresh} {
		if err := s.InsertArticle(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	expiring, err := s.ListArticlesOlderThan(ctx, "s1", "2026-08-20")
	if err != nil {
		t.Fatal(err)
	}
	if len(expiring) != 1 || expiring[0].Title != "Old" {
		t.Errorf("expiring = %v", expiring)
	}

	n, err := s.DeleteArticlesOlderThan(ctx, "s1", "2026-08-20")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}

	count, _ := s.CountArticles(ctx, "s1")
	if count != 1 {
		t.Errorf("remaining count = %d, want 1", count)
	}
}

func TestSessionStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testArticle("s1", "A", "https://example.com/a")
	a.Keywords = []string{"AI", "芯片"}
	a.Date = "2026-08-18"
	b := testArticle("s1", "B", "https://example.com/b")
	b.Keywords = []string{"AI"}
	b.Date = "2026-08-22"
	for _, art := range []*core.Article{a, b} {
		if err := s.InsertArticle(ctx, art); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.SessionStats(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalArticles != 2 {
		t.Errorf("total = %d, want 2", stats.TotalArticles)
	}
	if stats.KeywordCounts["AI"] != 2 || stats.KeywordCounts["芯片"] != 1 {
		t.Errorf("keyword counts = %v", stats.KeywordCounts)
	}
	if stats.OldestDate != "2026-08-18" || stats.NewestDate != "2026-08-22" {
		t.Errorf("date span = %s..%s", stats.OldestDate, stats.NewestDate)
	}
}

func TestInterestsRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetInterests(ctx, "u1")
	if err != nil || got != nil {
		t.Errorf("fresh user: interests = %v, err = %v", got, err)
	}

	if err := s.SaveInterests(ctx, "u1", []string{"AI", "足球"}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetInterests(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "AI" {
		t.Errorf("interests = %v", got)
	}

	// overwrite
	if err := s.SaveInterests(ctx, "u1", []string{"足球"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetInterests(ctx, "u1")
	if len(got) != 1 || got[0] != "足球" {
		t.Errorf("after overwrite: %v", got)
	}
}

func TestSessionMemoryRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSessionMemory(ctx, "sess")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing session, got %v", err)
	}

	mem := &core.SessionMemory{
		ConversationHistory: []core.ConversationTurn{
			{Timestamp: "2026-08-24T10:00:00Z", User: "hi", Assistant: "hello"},
		},
		UserContext: map[string]string{"lang": "zh"},
	}
	if err := s.SaveSessionMemory(ctx, "sess", mem); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSessionMemory(ctx, "sess")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.ConversationHistory) != 1 || got.UserContext["lang"] != "zh" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	if err := s.DeleteSessionMemory(ctx, "sess"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSessionMemory(ctx, "sess"); !errors.Is(err, core.ErrNotFound) {
		t.Error("memory should be gone after delete")
	}
}

func TestPreferencesAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.BumpPreference(ctx, "u1", "technology"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.BumpPreference(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}

	prefs, err := s.GetPreferences(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if prefs["technology"] != 3 {
		t.Errorf("weight = %d, want 3", prefs["technology"])
	}
	if _, ok := prefs[""]; ok {
		t.Error("empty category must not be recorded")
	}

	rec := core.SearchRecord{
		UserID: "u1", Query: "AI news", Keywords: []string{"AI"},
		ResultCount: 5, CreatedAt: time.Now().UTC(),
	}
	if err := s.AddSearchRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}
	history, err := s.RecentSearches(ctx, "u1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Query != "AI news" {
		t.Errorf("history = %+v", history)
	}

	if err := s.AddAPILog(ctx, core.APILogRecord{
		Endpoint: "pipeline/unified_complete", Duration: 1200 * time.Millisecond,
		Status: "success", CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
}
