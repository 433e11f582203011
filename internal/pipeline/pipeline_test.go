package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"newsmosaic/internal/agent"
	"newsmosaic/internal/cards"
	"newsmosaic/internal/conversation"
	"newsmosaic/internal/core"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/memory"
	"newsmosaic/internal/store"
	"newsmosaic/internal/vectorindex"
)

type fakeAgent struct {
	result *agent.Result
	err    error
	calls  int
}

func (f *fakeAgent) Process(_ context.Context, _, _, _ string) (*agent.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeCards struct {
	calls int
}

func (f *fakeCards) Generate(_ context.Context, article *core.Article, opts cards.Options) *core.NewsCard {
	f.calls++
	return &core.NewsCard{
		ID:        core.CardID(article.ID, time.Now(), opts.RAGEnhanced),
		ArticleID: article.ID,
		Title:     article.Title,
		Keywords:  article.Keywords,
	}
}

type fixedEmbedder struct {
	vecs map[string][]float64
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := f.vecs[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int { return 3 }

type testEnv struct {
	coord *Coordinator
	db    *store.Store
	agent *fakeAgent
	cards *fakeCards
	index *vectorindex.MemoryIndex
	chat  *llm.MockClient
	conv  *conversation.Manager
}

func newTestEnv(t *testing.T, embedder llm.Embedder) *testEnv {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:    db,
		agent: &fakeAgent{result: &agent.Result{Intent: "其它", Response: "代理回复"}},
		cards: &fakeCards{},
		index: vectorindex.NewMemoryIndex(),
		chat:  llm.NewMockClient(),
		conv:  conversation.NewManager(embedder),
	}
	env.chat.Fallback = "这是助手的回答。"
	env.coord = New(env.agent, env.cards, env.index, embedder, env.chat,
		env.conv, memory.New(db), db, DefaultConfig())
	return env
}

// seedArticle indexes one article both in the store and the vector index.
func (env *testEnv) seedArticle(t *testing.T, id, title string, vec []float64) {
	t.Helper()
	ctx := context.Background()
	article := &core.Article{
		ID: id, Scope: "s1", Title: title, URL: "https://example.com/" + id,
		Source: "测试", Date: "2026-08-24", Content: title + "的正文内容",
		Keywords: []string{"测试"}, Category: "technology",
	}
	if err := env.db.InsertArticle(ctx, article); err != nil {
		t.Fatal(err)
	}
	if err := env.index.Upsert(ctx, []vectorindex.Record{{
		ArticleID: id, ChunkIndex: 0, Vector: vec, Content: title,
	}}); err != nil {
		t.Fatal(err)
	}
}

func TestEnhancedChatMode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	resp, err := env.coord.Process(ctx, Request{
		UserID: "u1", SessionID: "s1", Message: "你好", Mode: ModeEnhancedChat,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Answer == "" {
		t.Errorf("resp = %+v", resp)
	}
	if f := resp.Features[FeatureChat]; !f.Enabled || !f.Success {
		t.Errorf("chat feature = %+v", f)
	}
	// untouched features keep the disabled shape
	for _, name := range []string{FeatureRAG, FeatureCards} {
		f := resp.Features[name]
		if f.Enabled || !f.Success || f.Elapsed != 0 {
			t.Errorf("%s feature = %+v, want disabled/success/zero", name, f)
		}
	}

	// the exchange lands in session memory
	mem, _ := memory.New(env.db).Get(ctx, "s1")
	if mem == nil || len(mem.ConversationHistory) != 1 {
		t.Errorf("memory = %+v", mem)
	}
}

func TestRAGAnalysisMode(t *testing.T) {
	emb := &fixedEmbedder{vecs: map[string][]float64{
		"AI芯片怎么样": {1, 0, 0},
	}}
	env := newTestEnv(t, emb)
	env.seedArticle(t, "a1", "AI芯片新闻", []float64{1, 0, 0})
	env.seedArticle(t, "a2", "无关新闻", []float64{0, 1, 0})

	resp, err := env.coord.Process(context.Background(), Request{
		UserID: "u1", SessionID: "s1", Message: "AI芯片怎么样", Mode: ModeRAGAnalysis,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.NewsRetrieved != 1 {
		t.Errorf("retrieved = %d (threshold must drop the orthogonal hit)", resp.NewsRetrieved)
	}
	if len(resp.Retrieved) != 1 || resp.Retrieved[0].ArticleID != "a1" {
		t.Errorf("hits = %+v", resp.Retrieved)
	}
	if resp.CardsGenerated != 0 {
		t.Error("rag_analysis must not generate cards")
	}
	if resp.Answer == "" || !resp.Success {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCardGenerationMode(t *testing.T) {
	emb := &fixedEmbedder{vecs: map[string][]float64{
		"科技新闻": {1, 0, 0},
	}}
	env := newTestEnv(t, emb)
	env.seedArticle(t, "a1", "新闻一", []float64{1, 0, 0})
	env.seedArticle(t, "a2", "新闻二", []float64{0.9, 0.1, 0})

	ctx := context.Background()
	resp, err := env.coord.Process(ctx, Request{
		UserID: "u1", SessionID: "s1", Message: "科技新闻", Mode: ModeCardGeneration,
		CardCount: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.CardsGenerated != 1 || len(resp.Cards) != 1 {
		t.Fatalf("cards = %d", resp.CardsGenerated)
	}
	if env.cards.calls != 1 {
		t.Errorf("card engine calls = %d", env.cards.calls)
	}
	if !resp.Success {
		t.Error("card output must count as success")
	}

	// card generation bumps the category preference
	prefs, _ := env.db.GetPreferences(ctx, "u1")
	if prefs["technology"] != 1 {
		t.Errorf("preferences = %v", prefs)
	}
}

func TestUnifiedCompleteMode(t *testing.T) {
	emb := &fixedEmbedder{vecs: map[string][]float64{
		"看看AI的新闻": {1, 0, 0},
	}}
	env := newTestEnv(t, emb)
	env.agent.result = &agent.Result{
		Intent: "准确搜索", Response: "✅ 搜索完成！", Keywords: []string{"AI"},
	}
	env.seedArticle(t, "a1", "AI新闻", []float64{1, 0, 0})
	env.seedArticle(t, "a2", "更多AI新闻", []float64{0.95, 0.05, 0})

	resp, err := env.coord.Process(context.Background(), Request{
		UserID: "u1", SessionID: "s1", Message: "看看AI的新闻", Mode: ModeUnifiedComplete,
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.agent.calls != 1 {
		t.Errorf("agent calls = %d", env.agent.calls)
	}
	if resp.Answer != "✅ 搜索完成！" {
		t.Errorf("answer = %q", resp.Answer)
	}
	// at most one card, on the top-similarity article
	if resp.CardsGenerated != 1 || resp.Cards[0].ArticleID != "a1" {
		t.Errorf("cards = %+v", resp.Cards)
	}
	// conversation context observed the turn
	sess := env.conv.SessionContext("s1")
	if sess == nil || sess.CurrentTopic != "AI" {
		t.Errorf("session context = %+v", sess)
	}
	if len(resp.RelatedTopics) == 0 {
		t.Error("related topics empty")
	}
}

func TestCustomModeGatesCardsOnRAG(t *testing.T) {
	env := newTestEnv(t, nil)

	// cards requested without rag: nothing to generate from
	resp, err := env.coord.Process(context.Background(), Request{
		UserID: "u1", SessionID: "s1", Message: "你好", Mode: ModeCustom,
		EnableChat: true, EnableCards: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if env.cards.calls != 0 {
		t.Error("cards must be gated on rag output")
	}
	if f := resp.Features[FeatureChat]; !f.Enabled || !f.Success {
		t.Errorf("chat feature = %+v", f)
	}
	if f := resp.Features[FeatureRAG]; f.Enabled {
		t.Errorf("rag feature = %+v, want disabled", f)
	}
}

func TestMessageValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.coord.Process(ctx, Request{Message: "  ", Mode: ModeEnhancedChat}); !errors.Is(err, core.ErrInvariantViolation) {
		t.Errorf("blank message err = %v", err)
	}
	long := strings.Repeat("长", maxMessageLen+1)
	if _, err := env.coord.Process(ctx, Request{Message: long, Mode: ModeEnhancedChat}); !errors.Is(err, core.ErrInvariantViolation) {
		t.Errorf("oversized message err = %v", err)
	}
	if _, err := env.coord.Process(ctx, Request{Message: "hi", Mode: "bogus"}); !errors.Is(err, core.ErrInvariantViolation) {
		t.Errorf("unknown mode err = %v", err)
	}
}

func TestProcessBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var requests []Request
	for i := 0; i < 4; i++ {
		requests = append(requests, Request{
			UserID: "u1", SessionID: fmt.Sprintf("s%d", i),
			Message: fmt.Sprintf("问题%d", i), Mode: ModeEnhancedChat,
		})
	}
	// one bad request fails independently
	requests = append(requests, Request{Message: "", Mode: ModeEnhancedChat})

	results, err := env.coord.ProcessBatch(ctx, requests)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("results = %d", len(results))
	}
	for i := 0; i < 4; i++ {
		if results[i].Index != i || results[i].Response == nil {
			t.Errorf("result %d = %+v", i, results[i])
		}
	}
	if results[4].Error == "" {
		t.Error("bad request must report its own error")
	}

	// batch size cap
	big := make([]Request, maxBatchRequests+1)
	if _, err := env.coord.ProcessBatch(ctx, big); !errors.Is(err, core.ErrInvariantViolation) {
		t.Errorf("oversized batch err = %v", err)
	}
}

func TestChatStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.chat.Fallback = strings.Repeat("回", 100)

	events := env.coord.ChatStream(context.Background(), Request{
		UserID: "u1", SessionID: "s1", Message: "你好", Mode: ModeEnhancedChat,
	})

	var types []string
	var content strings.Builder
	var final *Response
	for ev := range events {
		types = append(types, ev.Type)
		if ev.Type == EventContent {
			content.WriteString(ev.Content)
		}
		if ev.Type == EventComplete {
			final = ev.Response
		}
	}

	if types[0] != EventStart {
		t.Errorf("first event = %s", types[0])
	}
	if types[len(types)-1] != EventComplete {
		t.Errorf("last event = %s", types[len(types)-1])
	}
	if final == nil || content.String() != final.Answer {
		t.Errorf("streamed content does not reassemble the answer")
	}
}

func TestChatStreamError(t *testing.T) {
	env := newTestEnv(t, nil)

	events := env.coord.ChatStream(context.Background(), Request{Message: "", Mode: ModeEnhancedChat})
	var last StreamEvent
	for ev := range events {
		last = ev
	}
	if last.Type != EventError || last.Error == "" {
		t.Errorf("last event = %+v", last)
	}
}

func TestResponseQuality(t *testing.T) {
	tests := []struct {
		answer                            string
		personalized, memory, newsContext bool
		want                              float64
	}{
		{"短", false, false, false, 0.6},
		{strings.Repeat("长", 100), false, false, false, 0.7},
		{strings.Repeat("长", 100), true, true, true, 1.0},
		{"短", true, false, true, 0.8},
	}
	for _, tt := range tests {
		got := responseQuality(tt.answer, tt.personalized, tt.memory, tt.newsContext)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("responseQuality(len=%d, %v, %v, %v) = %v, want %v",
				len([]rune(tt.answer)), tt.personalized, tt.memory, tt.newsContext, got, tt.want)
		}
	}
}

func TestContextRelevance(t *testing.T) {
	// no news at all
	if got := contextRelevance("AI新闻", nil, false); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("no-news relevance = %v", got)
	}
	// news present, full keyword overlap
	got := contextRelevance("AI", []string{"AI发展迅速"}, true)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("full-overlap relevance = %v, want 1.0", got)
	}
	// news present, zero overlap
	got = contextRelevance("体育", []string{"财经新闻"}, true)
	if math.Abs(got-0.7) > 1e-9 {
		t.Errorf("zero-overlap relevance = %v, want 0.7", got)
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("AI芯片 market")
	want := map[string]bool{"ai": true, "芯片": true, "market": true}
	for _, token := range got {
		if !want[token] {
			t.Errorf("unexpected token %q in %v", token, got)
		}
	}
	if len(got) != 3 {
		t.Errorf("tokens = %v", got)
	}
}

func TestSuggestedQuestionsCap(t *testing.T) {
	topics := []string{"AI", "芯片", "股市", "体育", "财经", "教育"}
	got := suggestedQuestions(topics, []string{"标题一", "标题二"})
	if len(got) != 5 {
		t.Errorf("suggestions = %d, want cap 5", len(got))
	}
}
