package vectorindex

import (
	"context"
	"fmt"
	"strconv"

	sqcore "github.com/liliang-cn/cortexdb/v2/pkg/core"
	sqvect "github.com/liliang-cn/cortexdb/v2/pkg/cortexdb"

	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
)

// SqvectIndex persists embeddings in an embedded SQLite vector database.
// Records are content-addressed by (article ID, chunk index); the article
// ID doubles as the document ID so whole articles can be dropped at once.
type SqvectIndex struct {
	db *sqvect.DB
}

// NewSqvect opens (or creates) the vector database at path.
func NewSqvect(path string, dimension int) (*SqvectIndex, error) {
	cfg := sqvect.DefaultConfig(path)
	cfg.Dimensions = dimension
	cfg.SimilarityFn = sqcore.CosineSimilarity

	db, err := sqvect.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w: %v", core.ErrDependencyDown, err)
	}
	return &SqvectIndex{db: db}, nil
}

func (s *SqvectIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	embs := make([]*sqcore.Embedding, 0, len(records))
	for _, rec := range records {
		meta := map[string]string{"chunk_index": strconv.Itoa(rec.ChunkIndex)}
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		embs = append(embs, &sqcore.Embedding{
			ID:       rec.key(),
			DocID:    rec.ArticleID,
			Vector:   toFloat32(rec.Vector),
			Content:  rec.Content,
			Metadata: meta,
		})
	}

	if err := s.db.Vector().UpsertBatch(ctx, embs); err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}
	logger.Debug("vectors upserted", "count", len(embs))
	return nil
}

func (s *SqvectIndex) Query(ctx context.Context, vector []float64, topK int) ([]Scored, error) {
	if topK <= 0 {
		topK = 5
	}

	hits, err := s.db.Vector().Search(ctx, toFloat32(vector), sqcore.SearchOptions{TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	scored := make([]Scored, 0, len(hits))
	for _, hit := range hits {
		chunkIndex := 0
		if v, ok := hit.Metadata["chunk_index"]; ok {
			chunkIndex, _ = strconv.Atoi(v)
		}
		scored = append(scored, Scored{
			ArticleID:  hit.DocID,
			ChunkIndex: chunkIndex,
			Score:      hit.Score,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
		})
	}
	return scored, nil
}

func (s *SqvectIndex) DeleteArticle(ctx context.Context, articleID string) error {
	if err := s.db.Vector().DeleteByDocID(ctx, articleID); err != nil {
		return fmt.Errorf("vector delete failed: %w", err)
	}
	return nil
}

func (s *SqvectIndex) Close() error {
	return s.db.Close()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
