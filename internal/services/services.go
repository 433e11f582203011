// Package services wires the application components into one bundle
// constructed from configuration at process start.
package services

import (
	"fmt"
	"time"

	"newsmosaic/internal/agent"
	"newsmosaic/internal/cards"
	"newsmosaic/internal/config"
	"newsmosaic/internal/conversation"
	"newsmosaic/internal/embedding"
	"newsmosaic/internal/fetch"
	"newsmosaic/internal/ingest"
	"newsmosaic/internal/interests"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/memory"
	"newsmosaic/internal/pipeline"
	"newsmosaic/internal/search"
	"newsmosaic/internal/store"
	"newsmosaic/internal/vectorindex"
)

// Bundle holds every constructed component. There are no package-level
// singletons; callers pass the bundle (or the slice they need) down.
type Bundle struct {
	Config *config.Config

	DB    *store.Store
	Index vectorindex.Index

	Chat     llm.ChatClient
	Embedder llm.Embedder

	Search  search.Provider
	Fetcher fetch.Fetcher

	Ingest       *ingest.Engine
	Embedding    *embedding.Service
	Cards        *cards.Engine
	Interests    *interests.Store
	Memory       *memory.Store
	Conversation *conversation.Manager
	Agent        *agent.Orchestrator
	Pipeline     *pipeline.Coordinator
}

// New builds the full component graph from configuration. The chat key is
// required; a missing search key degrades to the mock provider so offline
// commands (stats, interests) keep working.
func New(cfg *config.Config) (*Bundle, error) {
	db, err := store.New(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("datastore init failed: %w", err)
	}

	index, err := vectorindex.NewSqvect(cfg.Store.VectorPath, cfg.LLM.Embedding.Dimension)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("vector index init failed: %w", err)
	}

	lm, err := llm.NewClient(cfg.LLM.Chat, cfg.LLM.Embedding)
	if err != nil {
		index.Close()
		db.Close()
		return nil, err
	}

	var provider search.Provider
	if cfg.Search.APIKey == "" {
		logger.Warn("search key not configured, using mock provider")
		provider = search.NewMockProvider()
	} else {
		provider, err = search.NewProvider(cfg.Search.Engine, cfg.Search.APIKey)
		if err != nil {
			index.Close()
			db.Close()
			return nil, fmt.Errorf("search provider init failed: %w", err)
		}
	}

	fetcher := fetch.New()
	ingestEngine := ingest.New(db, provider, fetcher, cfg.News.DefaultExpireDays)
	embedSvc := embedding.NewService(lm, cfg.LLM.Embedding)
	cardEngine := cards.NewEngine(lm, lm, index, cfg.LLM.Chat.Model)
	interestStore := interests.New(db, lm)
	memoryStore := memory.New(db)
	convManager := conversation.NewManager(lm)
	orchestrator := agent.New(lm, ingestEngine, interestStore, memoryStore, db)

	coordinator := pipeline.New(orchestrator, cardEngine, index, lm, lm,
		convManager, memoryStore, db, pipeline.Config{
			BatchMaxConcurrent: cfg.Pipeline.BatchMaxConcurrent,
			RequestTimeout:     time.Duration(cfg.Pipeline.RequestTimeoutSeconds) * time.Second,
		})

	return &Bundle{
		Config:       cfg,
		DB:           db,
		Index:        index,
		Chat:         lm,
		Embedder:     lm,
		Search:       provider,
		Fetcher:      fetcher,
		Ingest:       ingestEngine,
		Embedding:    embedSvc,
		Cards:        cardEngine,
		Interests:    interestStore,
		Memory:       memoryStore,
		Conversation: convManager,
		Agent:        orchestrator,
		Pipeline:     coordinator,
	}, nil
}

// Close releases the bundle's resources.
func (b *Bundle) Close() error {
	var first error
	if b.Index != nil {
		if err := b.Index.Close(); err != nil && first == nil {
			first = err
		}
	}
	if b.DB != nil {
		if err := b.DB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
