// Package embedding chunks text and produces dense vectors in batches.
package embedding

import (
	"context"
	"fmt"
	"time"

	"newsmosaic/internal/config"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
)

// Result pairs one chunk with its vector and model info.
type Result struct {
	Chunk          Chunk             `json:"chunk"`
	Vector         []float64         `json:"-"`
	Model          string            `json:"model"`
	Dimension      int               `json:"dimension"`
	SourceID       string            `json:"source_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ProcessingTime time.Duration     `json:"processing_time"`
}

// Service chunks and embeds documents.
type Service struct {
	embedder  llm.Embedder
	chunker   *Chunker
	model     string
	batchSize int
}

// NewService creates an embedding service from configuration.
func NewService(embedder llm.Embedder, cfg config.EmbeddingConfig) *Service {
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > 10 {
		batchSize = 10
	}
	return &Service{
		embedder:  embedder,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		model:     cfg.Model,
		batchSize: batchSize,
	}
}

// Chunk splits text without embedding it.
func (s *Service) Chunk(text string) []Chunk {
	return s.chunker.Split(text)
}

// EmbedOne embeds a single text.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float64, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for text")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in sub-batches of at most the configured size.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d failed: %w", start/s.batchSize, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Process chunks a document and embeds every chunk.
func (s *Service) Process(ctx context.Context, text, sourceID string, metadata map[string]string) ([]Result, error) {
	start := time.Now()

	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", sourceID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("vector count %d does not match chunk count %d for %s",
			len(vectors), len(chunks), sourceID)
	}

	elapsed := time.Since(start)
	results := make([]Result, len(chunks))
	for i, c := range chunks {
		results[i] = Result{
			Chunk:          c,
			Vector:         vectors[i],
			Model:          s.model,
			Dimension:      s.embedder.Dimension(),
			SourceID:       sourceID,
			Metadata:       metadata,
			ProcessingTime: elapsed,
		}
	}

	logger.Debug("document embedded", "source", sourceID, "chunks", len(chunks))
	return results, nil
}
