package cards

import (
	"context"
	"sort"
	"strings"
	"sync"

	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/vectorindex"
)

// relatedArticle is one merged retrieval hit used to build the context
// block.
type relatedArticle struct {
	articleID string
	score     float64
	content   string
}

// categoryQueryText expands a category into the query text used for the
// category-dimension retrieval.
var categoryQueryText = map[string]string{
	"technology":    "科技技术AI人工智能",
	"business":      "商业经济金融市场",
	"science":       "科学研究发现",
	"health":        "健康医疗卫生",
	"sports":        "体育运动比赛",
	"politics":      "政治政策政府",
	"entertainment": "娱乐明星影视",
}

// buildRAGContext retrieves related articles along four dimensions
// (title, leading body, category, keywords), merges them, and renders
// the context text. Failures degrade to an empty context.
func (e *Engine) buildRAGContext(ctx context.Context, article *core.Article) (core.RAGMetadata, string) {
	if e.index == nil || e.embedder == nil {
		return core.RAGMetadata{}, ""
	}

	type dimension struct {
		text string
		topK int
	}
	dims := []dimension{
		{text: article.Title, topK: 5},
		{text: truncateRunes(articleBody(article), 500), topK: 5},
	}
	if article.Category != "" {
		text, ok := categoryQueryText[strings.ToLower(article.Category)]
		if !ok {
			text = article.Category
		}
		dims = append(dims, dimension{text: text, topK: 3})
	}
	if len(article.Keywords) > 0 {
		kws := article.Keywords
		if len(kws) > 5 {
			kws = kws[:5]
		}
		dims = append(dims, dimension{text: strings.Join(kws, " "), topK: 3})
	}

	texts := make([]string, len(dims))
	for i, d := range dims {
		texts[i] = d.text
	}
	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil || len(vectors) != len(dims) {
		logger.Warn("rag context embedding failed", "error", errString(err))
		return core.RAGMetadata{}, ""
	}

	results := make([][]vectorindex.Scored, len(dims))
	var wg sync.WaitGroup
	for i := range dims {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hits, err := e.index.Query(ctx, vectors[i], dims[i].topK)
			if err != nil {
				logger.Warn("rag context query failed", "error", err.Error())
				return
			}
			results[i] = hits
		}(i)
	}
	wg.Wait()

	related := mergeRelated(results, article.ID)
	meta := core.RAGMetadata{SimilarityScores: map[string]float64{}}
	for _, r := range related {
		meta.RelatedNewsIDs = append(meta.RelatedNewsIDs, r.articleID)
		meta.SimilarityScores[r.articleID] = r.score
	}
	contextText := buildRAGContextText(related)
	meta.Context = contextText
	return meta, contextText
}

// mergeRelated dedupes hits by article ID, keeping the best score per
// article, and returns the top 10 by score.
func mergeRelated(results [][]vectorindex.Scored, selfID string) []relatedArticle {
	best := map[string]relatedArticle{}
	for _, hits := range results {
		for _, hit := range hits {
			if hit.ArticleID == selfID {
				continue
			}
			if cur, ok := best[hit.ArticleID]; !ok || hit.Score > cur.score {
				best[hit.ArticleID] = relatedArticle{
					articleID: hit.ArticleID,
					score:     hit.Score,
					content:   hit.Content,
				}
			}
		}
	}

	merged := make([]relatedArticle, 0, len(best))
	for _, r := range best {
		merged = append(merged, r)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].score > merged[j].score })
	if len(merged) > 10 {
		merged = merged[:10]
	}
	return merged
}

func errString(err error) string {
	if err == nil {
		return "embedding count mismatch"
	}
	return err.Error()
}
