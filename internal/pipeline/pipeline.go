// Package pipeline composes search, retrieval, enrichment, and chat into
// named end-to-end modes with per-feature accounting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"newsmosaic/internal/agent"
	"newsmosaic/internal/cards"
	"newsmosaic/internal/conversation"
	"newsmosaic/internal/core"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/memory"
	"newsmosaic/internal/store"
	"newsmosaic/internal/vectorindex"
)

// Pipeline modes.
const (
	ModeEnhancedChat    = "enhanced_chat"
	ModeRAGAnalysis     = "rag_analysis"
	ModeCardGeneration  = "card_generation"
	ModeUnifiedComplete = "unified_complete"
	ModeCustom          = "custom"
)

// Feature names used in per-feature accounting.
const (
	FeatureChat  = "chat"
	FeatureRAG   = "rag"
	FeatureCards = "cards"
)

const (
	maxMessageLen          = 2000
	defaultMaxResults      = 5
	defaultSimilarity      = 0.7
	defaultCardCount       = 3
	defaultContextWindow   = 10
	defaultTimeout         = 120 * time.Second
	defaultBatchConcurrent = 5
	maxBatchConcurrent     = 10
	maxBatchRequests       = 20
)

// Config bounds coordinator behavior.
type Config struct {
	BatchMaxConcurrent int
	RequestTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchMaxConcurrent: defaultBatchConcurrent,
		RequestTimeout:     defaultTimeout,
	}
}

// Agent is the orchestrator slice the coordinator drives.
type Agent interface {
	Process(ctx context.Context, userID, sessionID, message string) (*agent.Result, error)
}

// CardGenerator produces enriched cards for articles.
type CardGenerator interface {
	Generate(ctx context.Context, article *core.Article, opts cards.Options) *core.NewsCard
}

// Request selects a mode and its inputs for one pipeline run.
type Request struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Mode      string `json:"mode"`

	// custom-mode feature switches
	EnableChat  bool `json:"enable_chat"`
	EnableRAG   bool `json:"enable_rag"`
	EnableCards bool `json:"enable_cards"`

	RAGQuery            string  `json:"rag_query,omitempty"`
	MaxResults          int     `json:"max_results,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	CardCount           int     `json:"card_count,omitempty"`
	ContextWindow       int     `json:"context_window,omitempty"`
}

// FeatureResult reports one feature's outcome. Disabled features report
// enabled=false, success=true, zero time.
type FeatureResult struct {
	Enabled bool          `json:"enabled"`
	Success bool          `json:"success"`
	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Response is the uniform result shape for every mode.
type Response struct {
	Success  bool          `json:"success"`
	Mode     string        `json:"mode"`
	Answer   string        `json:"answer"`
	Elapsed  time.Duration `json:"elapsed"`
	TimedOut bool          `json:"timed_out,omitempty"`

	Cards     []*core.NewsCard     `json:"cards,omitempty"`
	Retrieved []vectorindex.Scored `json:"retrieved,omitempty"`
	Agent     *agent.Result        `json:"agent,omitempty"`

	Features map[string]FeatureResult `json:"features"`

	NewsRetrieved  int `json:"news_retrieved"`
	CardsGenerated int `json:"cards_generated"`
	MemoriesUsed   int `json:"memories_used"`

	ResponseQuality    float64  `json:"response_quality"`
	ContextRelevance   float64  `json:"context_relevance"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	RelatedTopics      []string `json:"related_topics,omitempty"`
}

// Coordinator wires the subsystems into runnable modes.
type Coordinator struct {
	agent    Agent
	cards    CardGenerator
	index    vectorindex.Index
	embedder llm.Embedder
	chat     llm.ChatClient
	conv     *conversation.Manager
	memory   *memory.Store
	db       *store.Store
	cfg      Config
	now      func() time.Time
}

func New(a Agent, cardGen CardGenerator, index vectorindex.Index, embedder llm.Embedder,
	chat llm.ChatClient, conv *conversation.Manager, mem *memory.Store, db *store.Store, cfg Config) *Coordinator {

	if cfg.BatchMaxConcurrent <= 0 {
		cfg.BatchMaxConcurrent = defaultBatchConcurrent
	}
	if cfg.BatchMaxConcurrent > maxBatchConcurrent {
		cfg.BatchMaxConcurrent = maxBatchConcurrent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}
	return &Coordinator{
		agent:    a,
		cards:    cardGen,
		index:    index,
		embedder: embedder,
		chat:     chat,
		conv:     conv,
		memory:   mem,
		db:       db,
		cfg:      cfg,
		now:      time.Now,
	}
}

func applyDefaults(req *Request) {
	if req.MaxResults <= 0 {
		req.MaxResults = defaultMaxResults
	}
	if req.SimilarityThreshold <= 0 {
		req.SimilarityThreshold = defaultSimilarity
	}
	if req.CardCount <= 0 {
		req.CardCount = defaultCardCount
	}
	if req.ContextWindow <= 0 {
		req.ContextWindow = defaultContextWindow
	}
}

// Process runs one pipeline request to completion or the configured
// deadline. A deadline hit surfaces whatever partial results exist.
func (c *Coordinator) Process(ctx context.Context, req Request) (*Response, error) {
	msgLen := len([]rune(strings.TrimSpace(req.Message)))
	if msgLen == 0 || msgLen > maxMessageLen {
		return nil, fmt.Errorf("message length %d out of range: %w", msgLen, core.ErrInvariantViolation)
	}
	applyDefaults(&req)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	start := c.now()
	resp := &Response{
		Mode:     req.Mode,
		Features: disabledFeatures(),
	}

	switch req.Mode {
	case ModeEnhancedChat:
		c.runEnhancedChat(ctx, req, resp)
	case ModeRAGAnalysis:
		c.runRAGAnalysis(ctx, req, resp)
	case ModeCardGeneration:
		c.runCardGeneration(ctx, req, resp)
	case ModeUnifiedComplete:
		c.runUnifiedComplete(ctx, req, resp)
	case ModeCustom:
		c.runCustom(ctx, req, resp)
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q: %w", req.Mode, core.ErrInvariantViolation)
	}

	resp.Elapsed = c.now().Sub(start)
	resp.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	resp.Success = resp.Answer != "" || resp.CardsGenerated > 0
	c.score(req, resp)
	c.logRun(req.Mode, resp)
	return resp, nil
}

func disabledFeatures() map[string]FeatureResult {
	return map[string]FeatureResult{
		FeatureChat:  {Enabled: false, Success: true},
		FeatureRAG:   {Enabled: false, Success: true},
		FeatureCards: {Enabled: false, Success: true},
	}
}

// --- modes ---

func (c *Coordinator) runEnhancedChat(ctx context.Context, req Request, resp *Response) {
	featStart := c.now()
	answer, memoriesUsed, err := c.contextualAnswer(ctx, req, "")
	feature := FeatureResult{Enabled: true, Success: err == nil, Elapsed: c.now().Sub(featStart)}
	if err != nil {
		feature.Error = err.Error()
	}
	resp.Features[FeatureChat] = feature
	resp.Answer = answer
	resp.MemoriesUsed = memoriesUsed

	if err == nil {
		c.rememberTurn(ctx, req, answer)
	}
}

func (c *Coordinator) runRAGAnalysis(ctx context.Context, req Request, resp *Response) {
	hits := c.retrieve(ctx, req, resp)

	featStart := c.now()
	answer, err := c.groundedAnswer(ctx, req.Message, hits)
	feature := FeatureResult{Enabled: true, Success: err == nil, Elapsed: c.now().Sub(featStart)}
	if err != nil {
		feature.Error = err.Error()
	}
	resp.Features[FeatureChat] = feature
	resp.Answer = answer
}

func (c *Coordinator) runCardGeneration(ctx context.Context, req Request, resp *Response) {
	hits := c.retrieve(ctx, req, resp)
	c.generateCards(ctx, req, hits, resp)
}

func (c *Coordinator) runUnifiedComplete(ctx context.Context, req Request, resp *Response) {
	featStart := c.now()
	agentResult, err := c.agent.Process(ctx, req.UserID, req.SessionID, req.Message)
	feature := FeatureResult{Enabled: true, Success: err == nil, Elapsed: c.now().Sub(featStart)}
	if err != nil {
		feature.Error = err.Error()
		resp.Features[FeatureChat] = feature
		return
	}
	resp.Features[FeatureChat] = feature
	resp.Agent = agentResult
	resp.Answer = agentResult.Response

	if c.conv != nil {
		topic := ""
		if len(agentResult.Keywords) > 0 {
			topic = agentResult.Keywords[0]
		}
		c.conv.ObserveTurn(req.SessionID, req.UserID, req.Message, topic, agentResult.Keywords)
	}

	// one card on the top-similarity article, when retrieval finds one
	hits := c.retrieve(ctx, req, resp)
	if len(hits) > 0 {
		one := req
		one.CardCount = 1
		c.generateCards(ctx, one, hits[:1], resp)
	}
}

func (c *Coordinator) runCustom(ctx context.Context, req Request, resp *Response) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		hits []vectorindex.Scored
	)

	if req.EnableChat {
		wg.Add(1)
		go func() {
			defer wg.Done()
			featStart := c.now()
			answer, memoriesUsed, err := c.contextualAnswer(ctx, req, "")
			feature := FeatureResult{Enabled: true, Success: err == nil, Elapsed: c.now().Sub(featStart)}
			if err != nil {
				feature.Error = err.Error()
			}
			mu.Lock()
			resp.Features[FeatureChat] = feature
			resp.Answer = answer
			resp.MemoriesUsed = memoriesUsed
			mu.Unlock()
		}()
	}

	if req.EnableRAG {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := &Response{Features: map[string]FeatureResult{}}
			found := c.retrieve(ctx, req, sub)
			mu.Lock()
			hits = found
			resp.Features[FeatureRAG] = sub.Features[FeatureRAG]
			resp.Retrieved = sub.Retrieved
			resp.NewsRetrieved = sub.NewsRetrieved
			mu.Unlock()
		}()
	}
	wg.Wait()

	// cards depend on retrieval output
	if req.EnableCards && req.EnableRAG {
		c.generateCards(ctx, req, hits, resp)
	}
}

// --- shared stages ---

// retrieve queries the index for articles similar to the request message
// (or the explicit RAG query) and filters by the similarity threshold.
func (c *Coordinator) retrieve(ctx context.Context, req Request, resp *Response) []vectorindex.Scored {
	featStart := c.now()
	feature := FeatureResult{Enabled: true}
	defer func() {
		feature.Elapsed = c.now().Sub(featStart)
		resp.Features[FeatureRAG] = feature
	}()

	if c.index == nil || c.embedder == nil {
		feature.Error = "vector retrieval unavailable"
		return nil
	}

	query := req.RAGQuery
	if query == "" {
		query = req.Message
	}
	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		feature.Error = err.Error()
		return nil
	}

	hits, err := c.index.Query(ctx, vectors[0], req.MaxResults)
	if err != nil {
		feature.Error = err.Error()
		return nil
	}

	kept := hits[:0]
	for _, hit := range hits {
		if hit.Score >= req.SimilarityThreshold {
			kept = append(kept, hit)
		}
	}
	feature.Success = true
	resp.Retrieved = kept
	resp.NewsRetrieved = len(kept)
	return kept
}

// generateCards enriches the top articles behind the retrieval hits.
func (c *Coordinator) generateCards(ctx context.Context, req Request, hits []vectorindex.Scored, resp *Response) {
	featStart := c.now()
	feature := FeatureResult{Enabled: true}
	defer func() {
		feature.Elapsed = c.now().Sub(featStart)
		resp.Features[FeatureCards] = feature
	}()

	if c.cards == nil {
		feature.Error = "card engine unavailable"
		return
	}

	count := 0
	for _, hit := range hits {
		if count >= req.CardCount {
			break
		}
		article, err := c.db.GetArticle(ctx, hit.ArticleID)
		if err != nil {
			logger.Warn("card source article missing", "article", hit.ArticleID)
			continue
		}
		card := c.cards.Generate(ctx, article, cards.Options{RAGEnhanced: true})
		resp.Cards = append(resp.Cards, card)
		count++

		// category preference accrues one point per generated card
		if err := c.db.BumpPreference(ctx, req.UserID, article.Category); err != nil {
			logger.Warn("preference update failed", "error", err.Error())
		}
	}
	resp.CardsGenerated = count
	feature.Success = true
}

// contextualAnswer builds a personalized prompt from the user's memory
// context and asks the model.
func (c *Coordinator) contextualAnswer(ctx context.Context, req Request, newsContext string) (string, int, error) {
	if c.chat == nil {
		return "", 0, fmt.Errorf("chat unavailable: %w", core.ErrConfigMissing)
	}

	memoriesUsed := 0
	var contextBlock strings.Builder
	if c.conv != nil {
		bundle, err := c.conv.GetRelevantContext(ctx, req.UserID, req.Message, req.SessionID)
		if err == nil && bundle.Summary != "" {
			contextBlock.WriteString("用户背景：\n" + bundle.Summary + "\n\n")
			memoriesUsed = len(bundle.Memories)
		}
	}
	if newsContext != "" {
		contextBlock.WriteString(newsContext + "\n\n")
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: chatSystemPrompt}}
	messages = append(messages, c.historyMessages(ctx, req.SessionID, req.ContextWindow)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: contextBlock.String() + req.Message})

	resp, err := c.chat.Chat(ctx, messages, llm.Options{})
	if err != nil {
		return "", memoriesUsed, err
	}
	return strings.TrimSpace(resp.Content), memoriesUsed, nil
}

// groundedAnswer asks the model to answer strictly from the retrieved
// articles.
func (c *Coordinator) groundedAnswer(ctx context.Context, message string, hits []vectorindex.Scored) (string, error) {
	if c.chat == nil {
		return "", fmt.Errorf("chat unavailable: %w", core.ErrConfigMissing)
	}
	if len(hits) == 0 {
		return "抱歉，没有找到与您的问题相关的新闻内容。", nil
	}

	var b strings.Builder
	b.WriteString("以下是检索到的相关新闻：\n")
	for i, hit := range hits {
		line := hit.Content
		if article, err := c.db.GetArticle(ctx, hit.ArticleID); err == nil {
			line = article.Title + "：" + firstRunes(article.Content, 200)
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, line)
	}
	b.WriteString("\n请基于以上新闻内容回答用户问题，不要编造新闻中没有的信息。\n用户问题：" + message)

	resp, err := c.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: ragSystemPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	}, llm.Options{})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (c *Coordinator) historyMessages(ctx context.Context, sessionID string, window int) []llm.Message {
	if c.memory == nil {
		return nil
	}
	mem, err := c.memory.Get(ctx, sessionID)
	if err != nil || mem == nil {
		return nil
	}
	turns := mem.ConversationHistory
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}
	var messages []llm.Message
	for _, turn := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.User},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Assistant})
	}
	return messages
}

func (c *Coordinator) rememberTurn(ctx context.Context, req Request, answer string) {
	if c.memory == nil || answer == "" {
		return
	}
	turn := core.ConversationTurn{
		Timestamp: c.now().UTC().Format(time.RFC3339),
		User:      req.Message,
		Assistant: answer,
	}
	if err := c.memory.AppendTurn(ctx, req.SessionID, turn); err != nil {
		logger.Warn("turn save failed", "error", err.Error())
	}
}

// score fills the quality metrics and follow-up suggestions.
func (c *Coordinator) score(req Request, resp *Response) {
	var titles, topics []string
	for _, card := range resp.Cards {
		topics = append(topics, card.Keywords...)
		titles = append(titles, card.Title)
	}
	for _, hit := range resp.Retrieved {
		if hit.Metadata != nil && hit.Metadata["title"] != "" {
			titles = append(titles, hit.Metadata["title"])
		}
	}

	// agent-backed answers are personalized through the user's interests
	personalized := resp.MemoriesUsed > 0 || resp.Agent != nil
	resp.ResponseQuality = responseQuality(resp.Answer,
		personalized, resp.MemoriesUsed > 0, resp.NewsRetrieved > 0)
	resp.ContextRelevance = contextRelevance(req.Message, titles, resp.NewsRetrieved > 0)
	resp.SuggestedQuestions = suggestedQuestions(topics, titles)
	resp.RelatedTopics = relatedTopics(topics, resp.Agent)
}

func (c *Coordinator) logRun(mode string, resp *Response) {
	if c.db == nil {
		return
	}
	status := "success"
	if !resp.Success {
		status = "failed"
	}
	rec := core.APILogRecord{
		Endpoint:  "pipeline/" + mode,
		Duration:  resp.Elapsed,
		Status:    status,
		CreatedAt: c.now(),
	}
	if err := c.db.AddAPILog(context.Background(), rec); err != nil {
		logger.Warn("api log write failed", "error", err.Error())
	}
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

const chatSystemPrompt = `你是一个专业的新闻智能助手，根据用户的背景信息和对话历史，提供个性化、有依据的回答。回答要简洁、准确、友好。`

const ragSystemPrompt = `你是一个新闻分析助手。你只能基于提供的新闻内容回答问题，如果新闻中没有相关信息，请明确说明。`
