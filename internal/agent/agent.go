// Package agent classifies user intent and drives the search, interest,
// and chat subflows behind the conversational surface.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsmosaic/internal/core"
	"newsmosaic/internal/interests"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/memory"
	"newsmosaic/internal/store"
)

// Intent classes form a closed set; anything the model emits outside it
// is treated as IntentOther.
const (
	IntentPrecise   = "准确搜索"
	IntentGeneral   = "含糊搜索"
	IntentInterests = "兴趣调整"
	IntentOther     = "其它"
)

const (
	preciseNumResults = 10
	generalNumResults = 15
	historyPreload    = 5
)

var validIntents = map[string]bool{
	IntentPrecise:   true,
	IntentGeneral:   true,
	IntentInterests: true,
	IntentOther:     true,
}

var validWindows = map[string]bool{"1d": true, "1w": true, "1m": true, "1y": true}

// expireDaysForWindow maps a search window to article retention.
var expireDaysForWindow = map[string]int{"1d": 1, "1w": 7, "1m": 30, "1y": 365}

var windowDescriptions = map[string]string{
	"1d": "最近1天",
	"1w": "最近1周",
	"1m": "最近1个月",
	"1y": "最近1年",
}

// generalFallbackKeywords is used when the model cannot produce broad
// search keywords.
var generalFallbackKeywords = []string{"热点", "今日"}

// Ingestor is the slice of the ingestion engine the agent drives.
type Ingestor interface {
	Ingest(ctx context.Context, req core.SearchRequest) core.IngestResult
}

// Result is the outcome of one processed message.
type Result struct {
	Intent     string             `json:"intent"`
	Response   string             `json:"response"`
	Keywords   []string           `json:"keywords,omitempty"`
	TimeWindow string             `json:"time_window,omitempty"`
	Ingest     *core.IngestResult `json:"ingest,omitempty"`
}

// Orchestrator routes a user message through the intent state graph.
type Orchestrator struct {
	chat      llm.ChatClient
	ingestor  Ingestor
	interests *interests.Store
	memory    *memory.Store
	db        *store.Store
	now       func() time.Time
}

func New(chat llm.ChatClient, ingestor Ingestor, interestStore *interests.Store, memoryStore *memory.Store, db *store.Store) *Orchestrator {
	return &Orchestrator{
		chat:      chat,
		ingestor:  ingestor,
		interests: interestStore,
		memory:    memoryStore,
		db:        db,
		now:       time.Now,
	}
}

// Process runs one user message through the graph and returns the reply.
// It degrades instead of failing: classification errors fall back to the
// chat flow.
func (o *Orchestrator) Process(ctx context.Context, userID, sessionID, message string) (*Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("empty message: %w", core.ErrInvariantViolation)
	}

	history := o.loadHistory(ctx, sessionID)
	intent := o.classifyIntent(ctx, message)
	logger.Info("message classified", "intent", intent, "session", sessionID)

	result := &Result{Intent: intent}
	switch intent {
	case IntentPrecise:
		o.searchPrecise(ctx, userID, sessionID, message, result)
		o.saveMemory(ctx, sessionID, message, result.Response)
	case IntentGeneral:
		o.searchGeneral(ctx, userID, sessionID, message, result)
		o.saveMemory(ctx, sessionID, message, result.Response)
	case IntentInterests:
		// pure interest edits leave no conversational trace
		result.Response = o.manageInterests(ctx, userID, message)
	default:
		result.Response = o.handleOther(ctx, history, message)
		o.saveMemory(ctx, sessionID, message, result.Response)
	}
	return result, nil
}

// loadHistory pre-populates the message list with the last few turns.
func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string) []llm.Message {
	mem, err := o.memory.Get(ctx, sessionID)
	if err != nil {
		logger.Warn("session history load failed", "error", err.Error())
		return nil
	}
	if mem == nil {
		return nil
	}

	turns := mem.ConversationHistory
	if len(turns) > historyPreload {
		turns = turns[len(turns)-historyPreload:]
	}
	var messages []llm.Message
	for _, turn := range turns {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.User},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Assistant})
	}
	return messages
}

func (o *Orchestrator) classifyIntent(ctx context.Context, message string) string {
	resp, err := o.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: classifyPrompt},
		{Role: llm.RoleUser, Content: message},
	}, llm.Options{})
	if err != nil {
		logger.Warn("intent classification failed, defaulting", "error", err.Error())
		return IntentOther
	}

	intent := strings.TrimSpace(resp.Content)
	if !validIntents[intent] {
		logger.Warn("invalid intent from model, defaulting", "value", intent)
		return IntentOther
	}
	return intent
}

// extractKeywords parses the model's "kw1,kw2|window" reply. Keywords are
// capped at 3; the window falls back to 1w.
func (o *Orchestrator) extractKeywords(ctx context.Context, message string) ([]string, string) {
	resp, err := o.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: keywordsTimePrompt},
		{Role: llm.RoleUser, Content: message},
	}, llm.Options{})
	if err != nil {
		logger.Warn("keyword extraction failed", "error", err.Error())
		return nil, "1w"
	}

	answer := strings.TrimSpace(resp.Content)
	keywordPart, window := answer, "1w"
	if idx := strings.Index(answer, "|"); idx >= 0 {
		keywordPart = answer[:idx]
		if w := strings.TrimSpace(answer[idx+1:]); validWindows[w] {
			window = w
		}
	}

	if strings.Contains(keywordPart, "无法提取") {
		return nil, window
	}
	keywords := splitCSV(keywordPart)
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return keywords, window
}

func (o *Orchestrator) extractTimeWindow(ctx context.Context, message string) string {
	resp, err := o.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: timeExtractPrompt},
		{Role: llm.RoleUser, Content: message},
	}, llm.Options{})
	if err != nil {
		return "1w"
	}
	if w := strings.TrimSpace(resp.Content); validWindows[w] {
		return w
	}
	return "1w"
}

func (o *Orchestrator) searchPrecise(ctx context.Context, userID, sessionID, message string, result *Result) {
	keywords, window := o.extractKeywords(ctx, message)
	if len(keywords) == 0 {
		result.Response = "抱歉，无法从您的请求中提取到有效的搜索关键词，请提供更具体的内容。"
		return
	}
	result.Keywords = keywords
	result.TimeWindow = window

	if _, err := o.interests.Add(ctx, userID, keywords); err != nil {
		logger.Warn("interest update failed", "error", err.Error())
	}

	res := o.ingestor.Ingest(ctx, core.SearchRequest{
		Scope:      sessionID,
		Keywords:   keywords,
		NumResults: preciseNumResults,
		Language:   "zh-cn",
		Country:    "cn",
		TimeWindow: window,
		ExpireDays: expireDaysForWindow[window],
	})
	result.Ingest = &res
	o.recordSearch(ctx, userID, message, keywords, res.Found)

	if res.Status != "success" {
		result.Response = "❌ 搜索失败: " + res.Message
		return
	}
	result.Response = fmt.Sprintf(`✅ 搜索完成！

🔍 搜索关键词: %s
⏰ 时间范围: %s
📊 搜索结果: 找到 %d 篇新闻，新增保存 %d 篇
🎯 兴趣更新: 已将这些关键词添加到您的兴趣偏好中`,
		strings.Join(keywords, ", "), windowDescriptions[window], res.Found, res.Saved)
}

func (o *Orchestrator) searchGeneral(ctx context.Context, userID, sessionID, message string, result *Result) {
	keywords := o.generalKeywords(ctx, message)
	window := o.extractTimeWindow(ctx, message)
	result.Keywords = keywords
	result.TimeWindow = window

	res := o.ingestor.Ingest(ctx, core.SearchRequest{
		Scope:      sessionID,
		Keywords:   keywords,
		NumResults: generalNumResults,
		Language:   "zh-cn",
		Country:    "cn",
		TimeWindow: window,
		ExpireDays: expireDaysForWindow[window],
	})
	result.Ingest = &res
	o.recordSearch(ctx, userID, message, keywords, res.Found)

	if res.Status != "success" {
		result.Response = "❌ 获取新闻失败: " + res.Message
		return
	}
	result.Response = fmt.Sprintf(`📰 为您推荐相关新闻！

🔍 智能关键词: %s
⏰ 时间范围: %s
📊 搜索结果: 找到 %d 篇相关新闻，新增保存 %d 篇

💡 提示: 如果您对某个领域特别感兴趣，可以告诉我具体的关键词！`,
		strings.Join(keywords, ", "), windowDescriptions[window], res.Found, res.Saved)
}

// generalKeywords asks the model for 2-3 broad search terms.
func (o *Orchestrator) generalKeywords(ctx context.Context, message string) []string {
	resp, err := o.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: generalKeywordsPrompt},
		{Role: llm.RoleUser, Content: message},
	}, llm.Options{})
	if err != nil {
		logger.Warn("general keyword generation failed, using fallback", "error", err.Error())
		return generalFallbackKeywords
	}

	keywords := splitCSV(resp.Content)
	if len(keywords) == 0 {
		return generalFallbackKeywords
	}
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	return keywords
}

// manageInterests executes the two-phase interest line protocol. Phase 1
// runs the model's lines in order; QUERY_RELATED enqueues a phase-2
// REMOVE of the discovered tags. Each line reports its own outcome.
func (o *Orchestrator) manageInterests(ctx context.Context, userID, message string) string {
	resp, err := o.chat.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: interestIntentPrompt},
		{Role: llm.RoleUser, Content: message},
	}, llm.Options{})
	if err != nil {
		logger.Error("interest intent analysis failed", err)
		return "❌ 兴趣管理功能暂时不可用，请稍后重试。"
	}

	var outcomes []string
	var pendingRemovals [][]string

	for _, line := range strings.Split(resp.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "UNKNOWN:"):
			return "抱歉，我无法理解您的兴趣调整需求，请更明确地表达。"

		case strings.HasPrefix(line, "QUERY_RELATED:"):
			keyword := strings.TrimSpace(strings.TrimPrefix(line, "QUERY_RELATED:"))
			if keyword == "" {
				continue
			}
			related, err := o.interests.Related(ctx, userID, keyword)
			switch {
			case err != nil:
				outcomes = append(outcomes, "❌ 查询相关兴趣失败，请稍后重试")
			case len(related) > 0:
				outcomes = append(outcomes, fmt.Sprintf("🔍 找到与「%s」相关的兴趣：%s", keyword, strings.Join(related, ", ")))
				pendingRemovals = append(pendingRemovals, related)
			default:
				outcomes = append(outcomes, fmt.Sprintf("🔍 未找到与「%s」相关的兴趣", keyword))
			}

		case strings.HasPrefix(line, "QUERY:"):
			current, err := o.interests.Get(ctx, userID)
			switch {
			case err != nil:
				outcomes = append(outcomes, "❌ 查询兴趣失败，请稍后重试")
			case len(current) > 0:
				outcomes = append(outcomes, "📋 您当前的兴趣偏好："+strings.Join(current, "、"))
			default:
				outcomes = append(outcomes, "📋 您还没有设置任何兴趣偏好。")
			}

		case strings.HasPrefix(line, "ADD:"):
			keywords := splitCSV(strings.TrimPrefix(line, "ADD:"))
			if len(keywords) == 0 {
				continue
			}
			if _, err := o.interests.Add(ctx, userID, keywords); err != nil {
				outcomes = append(outcomes, "❌ 添加兴趣失败，请稍后重试")
			} else {
				outcomes = append(outcomes, fmt.Sprintf("✅ 已将「%s」添加到您的兴趣中", strings.Join(keywords, ", ")))
			}

		case strings.HasPrefix(line, "REMOVE:"):
			keywords := splitCSV(strings.TrimPrefix(line, "REMOVE:"))
			if len(keywords) == 0 {
				continue
			}
			if _, err := o.interests.Remove(ctx, userID, keywords); err != nil {
				outcomes = append(outcomes, "❌ 移除兴趣失败，请稍后重试")
			} else {
				outcomes = append(outcomes, fmt.Sprintf("✅ 已从您的兴趣中移除「%s」", strings.Join(keywords, ", ")))
			}

		case strings.HasPrefix(line, "CLEAR:"):
			if err := o.interests.Clear(ctx, userID); err != nil {
				outcomes = append(outcomes, "❌ 清空兴趣失败，请稍后重试")
			} else {
				outcomes = append(outcomes, "✅ 已清空您的所有兴趣偏好")
			}

		case strings.HasPrefix(line, "REPLACE:"):
			content := strings.TrimPrefix(line, "REPLACE:")
			idx := strings.Index(content, "|")
			if idx < 0 {
				continue
			}
			if removals := splitCSV(content[:idx]); len(removals) > 0 {
				if _, err := o.interests.Remove(ctx, userID, removals); err != nil {
					outcomes = append(outcomes, "❌ 移除兴趣失败")
				} else {
					outcomes = append(outcomes, fmt.Sprintf("✅ 已从您的兴趣中移除「%s」", strings.Join(removals, ", ")))
				}
			}
			if additions := splitCSV(content[idx+1:]); len(additions) > 0 {
				if _, err := o.interests.Add(ctx, userID, additions); err != nil {
					outcomes = append(outcomes, "❌ 添加兴趣失败")
				} else {
					outcomes = append(outcomes, fmt.Sprintf("✅ 已将「%s」添加到您的兴趣中", strings.Join(additions, ", ")))
				}
			}
		}
	}

	// phase 2: removals discovered by QUERY_RELATED
	for _, keywords := range pendingRemovals {
		if _, err := o.interests.Remove(ctx, userID, keywords); err != nil {
			outcomes = append(outcomes, "❌ 删除相关兴趣失败，请稍后重试")
		} else {
			outcomes = append(outcomes, fmt.Sprintf("✅ 已成功删除相关兴趣：「%s」", strings.Join(keywords, ", ")))
		}
	}

	if len(outcomes) == 0 {
		return "🤔 抱歉，我无法理解您的兴趣调整需求。请尝试明确表达您想要增加、删除或查看哪些兴趣。"
	}
	return strings.Join(outcomes, "\n")
}

// handleOther answers non-news chatter with a short history window.
func (o *Orchestrator) handleOther(ctx context.Context, history []llm.Message, message string) string {
	messages := []llm.Message{{Role: llm.RoleSystem, Content: chatSystemPrompt}}
	// keep at most the last three turns of context
	if len(history) > 6 {
		history = history[len(history)-6:]
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	resp, err := o.chat.Chat(ctx, messages, llm.Options{})
	if err != nil {
		logger.Warn("chat reply generation failed, using fallback", "error", err.Error())
		return "你好！我是新闻小助手，有什么新闻想了解的吗？ 😊"
	}
	return strings.TrimSpace(resp.Content)
}

// saveMemory appends the newest user message not already in the
// transcript, paired with the latest assistant reply.
func (o *Orchestrator) saveMemory(ctx context.Context, sessionID, message, response string) {
	mem, err := o.memory.Get(ctx, sessionID)
	if err != nil {
		logger.Warn("memory load failed, skipping save", "error", err.Error())
		return
	}
	if mem != nil {
		for _, turn := range mem.ConversationHistory {
			if turn.User == message {
				return
			}
		}
	}
	turn := core.ConversationTurn{
		Timestamp: o.now().UTC().Format(time.RFC3339),
		User:      message,
		Assistant: response,
	}
	if err := o.memory.AppendTurn(ctx, sessionID, turn); err != nil {
		logger.Warn("memory save failed", "error", err.Error())
	}
}

func (o *Orchestrator) recordSearch(ctx context.Context, userID, query string, keywords []string, found int) {
	rec := core.SearchRecord{
		UserID:      userID,
		Query:       query,
		Keywords:    keywords,
		ResultCount: found,
		CreatedAt:   o.now(),
	}
	if err := o.db.AddSearchRecord(ctx, rec); err != nil {
		logger.Warn("search history write failed", "error", err.Error())
	}
}

// splitCSV splits on ASCII and fullwidth commas, trimming blanks.
func splitCSV(s string) []string {
	s = strings.ReplaceAll(s, "，", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
