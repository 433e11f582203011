package services

import (
	"context"
	"fmt"

	"newsmosaic/internal/logger"
	"newsmosaic/internal/vectorindex"
)

// indexListLimit bounds one indexing pass over a scope.
const indexListLimit = 200

// IndexScope embeds the scope's unembedded articles and upserts their
// chunk vectors into the index. Returns the number of articles indexed.
// Per-article failures are logged and skipped.
func (b *Bundle) IndexScope(ctx context.Context, scope string) (int, error) {
	articles, err := b.DB.ListArticles(ctx, scope, indexListLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list articles for indexing: %w", err)
	}

	indexed := 0
	for i := range articles {
		article := &articles[i]
		if article.Embedded {
			continue
		}

		text := article.Title + "\n" + article.Content
		results, err := b.Embedding.Process(ctx, text, article.ID, map[string]string{
			"title": article.Title,
			"scope": scope,
		})
		if err != nil {
			logger.Warn("article embedding failed", "article", article.ID, "error", err.Error())
			continue
		}
		if len(results) == 0 {
			continue
		}

		records := make([]vectorindex.Record, len(results))
		for j, r := range results {
			records[j] = vectorindex.Record{
				ArticleID:  article.ID,
				ChunkIndex: r.Chunk.Index,
				Vector:     r.Vector,
				Content:    r.Chunk.Text,
				Metadata:   map[string]string{"title": article.Title},
			}
		}
		if err := b.Index.Upsert(ctx, records); err != nil {
			logger.Warn("vector upsert failed", "article", article.ID, "error", err.Error())
			continue
		}
		if err := b.DB.SetArticleEmbedded(ctx, article.ID, true); err != nil {
			logger.Warn("embedded flag update failed", "article", article.ID, "error", err.Error())
		}
		indexed++
	}

	if indexed > 0 {
		logger.Info("scope indexed", "scope", scope, "articles", indexed)
	}
	return indexed, nil
}
