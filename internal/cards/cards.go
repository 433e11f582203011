// Package cards drives the language model to produce structured,
// enum-normalized news cards, optionally enriched with related-article
// retrieval.
package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"newsmosaic/internal/core"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/vectorindex"
)

const defaultSummaryLength = 200

// urgentKeywords bump the deterministic urgency score when present in
// the article text.
var urgentKeywords = []string{"突发", "紧急", "重大", "立即", "警报", "事故", "灾害"}

// Options selects per-generation behavior.
type Options struct {
	// RAGEnhanced turns on related-article retrieval and trend analysis.
	RAGEnhanced bool
	// MaxSummaryLength bounds the summary in characters. Zero means the
	// default.
	MaxSummaryLength int
}

// Engine generates news cards. index and embedder may be nil; RAG
// enrichment is then skipped.
type Engine struct {
	chat     llm.ChatClient
	embedder llm.Embedder
	index    vectorindex.Index
	model    string
	now      func() time.Time
}

func NewEngine(chat llm.ChatClient, embedder llm.Embedder, index vectorindex.Index, model string) *Engine {
	return &Engine{chat: chat, embedder: embedder, index: index, model: model, now: time.Now}
}

// summaryBundle is the result of the combined summary analysis.
type summaryBundle struct {
	Summary         string
	EnhancedSummary string
	KeyPoints       []string
	Keywords        []string
	Hashtags        []string
	Audience        string
	ReadingTime     int
	Difficulty      core.DifficultyLevel
}

// Generate produces a card for the article. It never returns an error;
// failed sub-analyses fall back to defaults and leave a warning on the
// card.
func (e *Engine) Generate(ctx context.Context, article *core.Article, opts Options) *core.NewsCard {
	start := e.now()
	maxLen := opts.MaxSummaryLength
	if maxLen <= 0 {
		maxLen = defaultSummaryLength
	}

	var (
		warnMu   sync.Mutex
		warnings []string
	)
	warn := func(msg string) {
		warnMu.Lock()
		warnings = append(warnings, msg)
		warnMu.Unlock()
	}

	ragMeta := core.RAGMetadata{}
	ragContext := ""
	if opts.RAGEnhanced {
		ragMeta, ragContext = e.buildRAGContext(ctx, article)
		if ragContext == "" {
			warn("related-news retrieval unavailable")
		}
	}

	var (
		bundle      summaryBundle
		sentiment   core.SentimentAnalysis
		theme       core.ThemeAnalysis
		importance  core.ImportanceAnalysis
		credibility core.CredibilityAnalysis
		entities    []core.Entity
		trend       string
	)

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("card analysis panicked", fmt.Errorf("%v", r), "analysis", name)
					warn(name + " analysis failed")
				}
			}()
			fn()
		}()
	}

	run("summary", func() { bundle = e.analyzeSummary(ctx, article, maxLen, ragContext, warn) })
	run("sentiment", func() { sentiment = e.analyzeSentiment(ctx, article, ragContext, warn) })
	run("themes", func() { theme = e.analyzeThemes(ctx, article, ragContext, warn) })
	run("importance", func() { importance = e.analyzeImportance(ctx, article, ragContext, warn) })
	run("credibility", func() { credibility = e.analyzeCredibility(ctx, article, ragContext, warn) })
	run("entities", func() { entities = e.analyzeEntities(ctx, article, ragContext, warn) })
	if opts.RAGEnhanced && ragContext != "" {
		run("trend", func() { trend = e.analyzeTrend(ctx, article, ragContext, warn) })
	}
	wg.Wait()

	ragMeta.TrendAnalysis = trend
	timeliness := computeTimeliness(article, len(ragMeta.RelatedNewsIDs), e.now())

	generatedAt := e.now()
	card := &core.NewsCard{
		ID:              core.CardID(article.ID, generatedAt, opts.RAGEnhanced),
		ArticleID:       article.ID,
		Title:           article.Title,
		Summary:         bundle.Summary,
		EnhancedSummary: bundle.EnhancedSummary,
		KeyPoints:       bundle.KeyPoints,
		Keywords:        bundle.Keywords,
		Hashtags:        bundle.Hashtags,
		Theme:           theme,
		Sentiment:       sentiment,
		Importance:      importance,
		Credibility:     credibility,
		Entities:        entities,
		Timeliness:      timeliness,
		Audience:        bundle.Audience,
		ReadingTime:     bundle.ReadingTime,
		Difficulty:      bundle.Difficulty,
		RAG:             ragMeta,
		Warnings:        warnings,
		GeneratedAt:     generatedAt,
		GenerationTime:  generatedAt.Sub(start),
		Model:           e.model,
	}
	return card
}

// ask sends one analysis prompt and decodes the JSON object from the
// reply.
func (e *Engine) ask(ctx context.Context, prompt string) (map[string]any, error) {
	if e.chat == nil {
		return nil, fmt.Errorf("no chat client: %w", core.ErrConfigMissing)
	}
	resp, err := e.chat.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.Options{})
	if err != nil {
		return nil, err
	}
	return extractJSON(resp.Content)
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON decodes the reply as a JSON object, falling back to the
// first {...} substring when the model wrapped it in prose.
func extractJSON(reply string) (map[string]any, error) {
	reply = strings.TrimSpace(reply)

	var obj map[string]any
	if err := json.Unmarshal([]byte(reply), &obj); err == nil {
		return obj, nil
	}
	if match := jsonObjectRe.FindString(reply); match != "" {
		if err := json.Unmarshal([]byte(match), &obj); err == nil {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("no JSON object in model reply: %w", core.ErrParseFailed)
}

func (e *Engine) analyzeSummary(ctx context.Context, article *core.Article, maxLen int, ragContext string, warn func(string)) summaryBundle {
	fallback := summaryBundle{
		Summary:     truncateRunes(firstNonEmpty(article.Snippet, article.Title), maxLen),
		KeyPoints:   []string{article.Title},
		ReadingTime: estimateReadingTime(articleBody(article)),
		Difficulty:  core.DifficultyMedium,
	}
	fallback.EnhancedSummary = fallback.Summary

	obj, err := e.ask(ctx, summaryPrompt(article, maxLen, ragContext))
	if err != nil {
		warn("summary analysis degraded: " + err.Error())
		return fallback
	}

	bundle := summaryBundle{
		Summary:         truncateRunes(asString(obj["summary"]), maxLen),
		EnhancedSummary: truncateRunes(asString(obj["enhanced_summary"]), maxLen*2),
		KeyPoints:       capList(asStringList(obj["key_points"]), 5),
		Keywords:        capList(asStringList(obj["keywords"]), 10),
		Hashtags:        capList(normalizeHashtags(asStringList(obj["hashtags"])), 5),
		Audience:        asString(obj["audience"]),
		ReadingTime:     readingTimeFrom(obj["reading_time"]),
		Difficulty:      MapDifficulty(asString(obj["difficulty"])),
	}
	if bundle.Summary == "" {
		bundle.Summary = fallback.Summary
	}
	if bundle.EnhancedSummary == "" {
		bundle.EnhancedSummary = bundle.Summary
	}
	if len(bundle.KeyPoints) == 0 {
		bundle.KeyPoints = fallback.KeyPoints
	}
	return bundle
}

func (e *Engine) analyzeSentiment(ctx context.Context, article *core.Article, ragContext string, warn func(string)) core.SentimentAnalysis {
	obj, err := e.ask(ctx, sentimentPrompt(article, ragContext))
	if err != nil {
		warn("sentiment analysis degraded: " + err.Error())
		return core.SentimentAnalysis{Label: core.SentimentNeutral, Score: 0, Confidence: core.ConfidenceLow}
	}
	return core.SentimentAnalysis{
		Label:      MapSentiment(asString(obj["label"])),
		Score:      core.ClampScore(asFloat(obj["score"], 0), -1, 1),
		Confidence: MapConfidence(asString(obj["confidence"])),
		Reason:     asString(obj["reason"]),
	}
}

func (e *Engine) analyzeThemes(ctx context.Context, article *core.Article, ragContext string, warn func(string)) core.ThemeAnalysis {
	fallback := core.ThemeAnalysis{
		Primary:    firstNonEmpty(article.Category, "综合新闻"),
		Confidence: 0.5,
	}
	obj, err := e.ask(ctx, themesPrompt(article, ragContext))
	if err != nil {
		warn("theme analysis degraded: " + err.Error())
		return fallback
	}
	theme := core.ThemeAnalysis{
		Primary:     asString(obj["primary_theme"]),
		Secondary:   capList(asStringList(obj["secondary_themes"]), 3),
		Confidence:  core.ClampScore(asFloat(obj["confidence"], 0.5), 0, 1),
		Description: asString(obj["description"]),
	}
	if theme.Primary == "" {
		theme.Primary = fallback.Primary
	}
	return theme
}

func (e *Engine) analyzeImportance(ctx context.Context, article *core.Article, ragContext string, warn func(string)) core.ImportanceAnalysis {
	obj, err := e.ask(ctx, importancePrompt(article, ragContext))
	if err != nil {
		warn("importance analysis degraded: " + err.Error())
		return core.ImportanceAnalysis{Score: 5, Level: core.ImportanceMedium, Reason: "常规新闻"}
	}
	return core.ImportanceAnalysis{
		Score:  core.ClampScore(asFloat(obj["score"], 5), 0, 10),
		Level:  MapImportance(asString(obj["level"])),
		Reason: asString(obj["reason"]),
	}
}

func (e *Engine) analyzeCredibility(ctx context.Context, article *core.Article, ragContext string, warn func(string)) core.CredibilityAnalysis {
	obj, err := e.ask(ctx, credibilityPrompt(article, ragContext))
	if err != nil {
		warn("credibility analysis degraded: " + err.Error())
		return core.CredibilityAnalysis{Score: 5, Level: core.CredibilityModerate, Reason: "需要进一步验证"}
	}
	return core.CredibilityAnalysis{
		Score:  core.ClampScore(asFloat(obj["score"], 5), 0, 10),
		Level:  MapCredibility(asString(obj["level"])),
		Reason: asString(obj["reason"]),
	}
}

func (e *Engine) analyzeEntities(ctx context.Context, article *core.Article, ragContext string, warn func(string)) []core.Entity {
	obj, err := e.ask(ctx, entitiesPrompt(article, ragContext))
	if err != nil {
		warn("entity extraction degraded: " + err.Error())
		return nil
	}
	entities := normalizeEntities(obj["entities"])
	if len(entities) > 20 {
		entities = entities[:20]
	}
	return entities
}

func (e *Engine) analyzeTrend(ctx context.Context, article *core.Article, ragContext string, warn func(string)) string {
	if e.chat == nil {
		return ""
	}
	resp, err := e.chat.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: trendPrompt(article, ragContext)}}, llm.Options{})
	if err != nil {
		warn("trend analysis degraded: " + err.Error())
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// computeTimeliness derives urgency and freshness without the model.
// Freshness follows article age; urgency starts at 5 and grows with the
// related-news count and urgent keywords, capped at 10.
func computeTimeliness(article *core.Article, relatedCount int, now time.Time) core.TimelinessAnalysis {
	freshness := 4.0
	if published, err := time.Parse("2006-01-02", article.Date); err == nil {
		age := now.Sub(published)
		switch {
		case age < time.Hour:
			freshness = 10
		case age < 6*time.Hour:
			freshness = 9
		case age < 24*time.Hour:
			freshness = 8
		case age < 72*time.Hour:
			freshness = 6
		}
	}

	urgency := 5.0
	if relatedCount > 5 {
		urgency += 2
	}
	if relatedCount > 10 {
		urgency++
	}
	text := article.Title + " " + articleBody(article)
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			urgency++
		}
	}
	urgency = core.ClampScore(urgency, 0, 10)

	return core.TimelinessAnalysis{
		Urgency:       urgency,
		Freshness:     freshness,
		TimeSensitive: urgency > 7 || relatedCount > 8,
	}
}

// estimateReadingTime assumes roughly 200 characters per minute.
func estimateReadingTime(text string) int {
	minutes := len([]rune(text)) / 200
	if minutes < 1 {
		return 1
	}
	return minutes
}

func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
	}
	return out
}

func capList(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
