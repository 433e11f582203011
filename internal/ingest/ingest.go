// Package ingest turns upstream search results into deduplicated, scoped
// article records with freshness eviction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"newsmosaic/internal/core"
	"newsmosaic/internal/fetch"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/search"
	"newsmosaic/internal/store"
)

const (
	// refresh batching limits
	refreshBatchSize  = 5
	refreshMaxBatches = 3
	refreshNumResults = 5
)

// Engine coordinates search, dedup, content fetch, and eviction for one
// article store.
type Engine struct {
	store             *store.Store
	provider          search.Provider
	fetcher           fetch.Fetcher
	defaultExpireDays int
	now               func() time.Time
}

// New creates an ingestion engine. expireDays <= 0 falls back to 3.
func New(s *store.Store, provider search.Provider, fetcher fetch.Fetcher, expireDays int) *Engine {
	if expireDays <= 0 {
		expireDays = 3
	}
	return &Engine{
		store:             s,
		provider:          provider,
		fetcher:           fetcher,
		defaultExpireDays: expireDays,
		now:               time.Now,
	}
}

var titleWhitespaceRe = regexp.MustCompile(`\s+`)

// CleanTitle collapses internal whitespace and trims. Part of the article
// dedup key, so it must be stable.
func CleanTitle(title string) string {
	return strings.TrimSpace(titleWhitespaceRe.ReplaceAllString(title, " "))
}

// Ingest runs one search-dedup-persist pass for a scope. Per-record
// failures are isolated; the result carries partial counts.
func (e *Engine) Ingest(ctx context.Context, req core.SearchRequest) core.IngestResult {
	start := e.now()

	if req.Scope == "" || len(req.Keywords) == 0 {
		return core.IngestResult{
			Status:  "error",
			Message: "scope and keywords are required",
			Elapsed: e.now().Sub(start),
		}
	}

	expireDays := req.ExpireDays
	if expireDays <= 0 {
		expireDays = e.defaultExpireDays
	}
	if _, err := e.EvictExpired(ctx, req.Scope, expireDays); err != nil {
		logger.Warn("eviction before ingest failed", "scope", req.Scope, "error", err.Error())
	}

	numResults := req.NumResults
	if numResults <= 0 {
		numResults = 10
	}
	if numResults > core.MaxSearchResults {
		numResults = core.MaxSearchResults
	}

	raw, err := e.provider.Search(ctx, strings.Join(req.Keywords, " "), search.Config{
		NumResults: numResults,
		Language:   req.Language,
		Country:    req.Country,
		TimeWindow: req.TimeWindow,
	})
	if err != nil {
		logger.Error("upstream search failed", err, "scope", req.Scope)
		return core.IngestResult{
			Status:  "error",
			Message: fmt.Sprintf("search failed: %v", err),
			Elapsed: e.now().Sub(start),
		}
	}

	result := core.IngestResult{Status: "success", Found: len(raw)}
	for _, rec := range raw {
		if err := e.ingestOne(ctx, req, rec, &result); err != nil {
			logger.Warn("article ingest failed", "title", rec.Title, "error", err.Error())
			result.Skipped++
		}
	}
	result.Elapsed = e.now().Sub(start)

	logger.Info("ingest completed", "scope", req.Scope, "found", result.Found,
		"saved", result.Saved, "updated", result.Updated, "skipped", result.Skipped)
	return result
}

func (e *Engine) ingestOne(ctx context.Context, req core.SearchRequest, rec core.RawArticle, result *core.IngestResult) error {
	title := CleanTitle(rec.Title)
	url := strings.TrimSpace(rec.URL)
	if title == "" || url == "" {
		result.Skipped++
		return nil
	}

	existing, err := e.store.FindArticle(ctx, req.Scope, title, url)
	switch {
	case err == nil:
		merged, grew := unionKeywords(existing.Keywords, req.Keywords)
		if !grew {
			return nil
		}
		if err := e.store.UpdateArticleKeywords(ctx, existing.ID, merged); err != nil {
			return err
		}
		result.Updated++
		result.UpdatedIDs = append(result.UpdatedIDs, existing.ID)
		return nil

	case errors.Is(err, core.ErrNotFound):
		content := e.fetcher.Fetch(ctx, url)
		if content == "" {
			result.Skipped++
			return nil
		}
		now := e.now().UTC()
		article := &core.Article{
			ID:        core.ArticleID(title, url, req.Scope),
			Scope:     req.Scope,
			Title:     title,
			URL:       url,
			Source:    rec.Source,
			Snippet:   rec.Snippet,
			Date:      NormalizeDate(rec.Date, e.now()),
			Content:   content,
			Keywords:  append([]string(nil), req.Keywords...),
			Embedded:  false,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.store.InsertArticle(ctx, article); err != nil {
			return err
		}
		result.Saved++
		result.SavedIDs = append(result.SavedIDs, article.ID)
		return nil

	default:
		return err
	}
}

// unionKeywords merges new keywords into existing, preserving order.
// grew is true only when the union strictly exceeds the existing set.
func unionKeywords(existing, incoming []string) (merged []string, grew bool) {
	seen := make(map[string]bool, len(existing))
	merged = append(merged, existing...)
	for _, kw := range existing {
		seen[kw] = true
	}
	for _, kw := range incoming {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		merged = append(merged, kw)
		grew = true
	}
	return merged, grew
}

// EvictExpired deletes a scope's articles dated before today-expireDays.
func (e *Engine) EvictExpired(ctx context.Context, scope string, expireDays int) (int64, error) {
	if expireDays <= 0 {
		expireDays = e.defaultExpireDays
	}
	cutoff := e.now().AddDate(0, 0, -expireDays).Format(dateFormat)
	return e.store.DeleteArticlesOlderThan(ctx, scope, cutoff)
}

// Refresh evicts a scope's stale articles and re-ingests their keywords in
// small batches. Batch failures are logged and do not abort the refresh.
func (e *Engine) Refresh(ctx context.Context, scope string, expireDays int) error {
	if expireDays <= 0 {
		expireDays = e.defaultExpireDays
	}
	cutoff := e.now().AddDate(0, 0, -expireDays).Format(dateFormat)

	expiring, err := e.store.ListArticlesOlderThan(ctx, scope, cutoff)
	if err != nil {
		return fmt.Errorf("failed to collect expiring articles: %w", err)
	}
	if len(expiring) == 0 {
		return nil
	}

	var keywords []string
	seen := map[string]bool{}
	for _, a := range expiring {
		for _, kw := range a.Keywords {
			if !seen[kw] {
				seen[kw] = true
				keywords = append(keywords, kw)
			}
		}
	}

	if _, err := e.store.DeleteArticlesOlderThan(ctx, scope, cutoff); err != nil {
		return fmt.Errorf("failed to evict before refresh: %w", err)
	}

	batches := 0
	for i := 0; i < len(keywords) && batches < refreshMaxBatches; i += refreshBatchSize {
		end := i + refreshBatchSize
		if end > len(keywords) {
			end = len(keywords)
		}
		batch := keywords[i:end]
		batches++

		result := e.Ingest(ctx, core.SearchRequest{
			Scope:      scope,
			Keywords:   batch,
			NumResults: refreshNumResults,
			TimeWindow: "1d",
			ExpireDays: expireDays,
		})
		if result.Status != "success" {
			logger.Warn("refresh batch failed", "scope", scope, "keywords", batch, "message", result.Message)
		}
	}

	logger.Info("refresh completed", "scope", scope, "expired", len(expiring), "batches", batches)
	return nil
}

// Stats returns the scope's article statistics.
func (e *Engine) Stats(ctx context.Context, scope string) (*core.SessionStats, error) {
	return e.store.SessionStats(ctx, scope)
}

// ListArticles returns the scope's newest articles.
func (e *Engine) ListArticles(ctx context.Context, scope string, limit int) ([]core.Article, error) {
	return e.store.ListArticles(ctx, scope, limit)
}
