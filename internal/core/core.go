package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"
)

// Article is a single news item normalized and persisted by the ingestion
// engine. Articles are scoped to the session that discovered them; within a
// scope the (Title, URL) pair is unique.
type Article struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"` // session ID owning this article
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Snippet   string    `json:"snippet"`
	Date      string    `json:"date"` // normalized YYYY-MM-DD, never empty
	Content   string    `json:"content"`
	Keywords  []string  `json:"keywords"`
	Embedded  bool      `json:"embedded"`
	Category  string    `json:"category,omitempty"`
	Sentiment string    `json:"sentiment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArticleID derives the stable article identifier from the dedup key.
// The same (title, url, scope) triple yields the same ID across processes.
func ArticleID(title, url, scope string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%s_%s", title, url, scope)))
	return hex.EncodeToString(sum[:])
}

// RawArticle is an upstream search hit before ingestion. Records without a
// title or URL are dropped by the search adapter.
type RawArticle struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

// SearchRequest describes one ingestion run for a scope.
type SearchRequest struct {
	Scope      string   `json:"scope"`
	Keywords   []string `json:"keywords"`
	NumResults int      `json:"num_results"` // clamped to MaxSearchResults
	Language   string   `json:"language"`
	Country    string   `json:"country"`
	TimeWindow string   `json:"time_window"` // 1d, 1w, 1m, 1y
	ExpireDays int      `json:"expire_days"`
}

// MaxSearchResults caps the per-request result count.
const MaxSearchResults = 50

// IngestResult reports the outcome of one ingestion run.
type IngestResult struct {
	Status     string        `json:"status"`
	Found      int           `json:"found"`
	Saved      int           `json:"saved"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	SavedIDs   []string      `json:"saved_ids,omitempty"`
	UpdatedIDs []string      `json:"updated_ids,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Message    string        `json:"message,omitempty"`
}

// SessionStats summarizes a scope's stored articles.
type SessionStats struct {
	Scope         string         `json:"scope"`
	TotalArticles int            `json:"total_articles"`
	KeywordCounts map[string]int `json:"keyword_counts"`
	OldestDate    string         `json:"oldest_date,omitempty"`
	NewestDate    string         `json:"newest_date,omitempty"`
}

// ConversationTurn is one (user, assistant) exchange in a session transcript.
type ConversationTurn struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// SessionMemory is the per-session rolling transcript plus a free-form
// user context blob. History is bounded to MaxHistoryTurns on save.
type SessionMemory struct {
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	UserContext         map[string]string  `json:"user_context"`
}

// MaxHistoryTurns bounds the session transcript ring.
const MaxHistoryTurns = 10

// MaxInterests bounds the per-user interest tag set.
const MaxInterests = 20

// MemoryType classifies a memory item.
type MemoryType string

const (
	MemoryPreference  MemoryType = "preference"
	MemoryInteraction MemoryType = "interaction"
	MemoryFact        MemoryType = "fact"
	MemoryContext     MemoryType = "context"
	MemoryKnowledge   MemoryType = "knowledge"
)

// MemoryItem is a typed, embedding-bearing note about a user, retrievable
// by similarity to a query.
type MemoryItem struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Type       MemoryType `json:"type"`
	Content    string     `json:"content"`
	Importance float64    `json:"importance"` // [0, 1]
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Active     bool       `json:"active"`
	Embedding  []float64  `json:"-"`
}

// MemoryProfile aggregates a user's memory items and response preferences.
// TotalMemories always equals the number of active items.
type MemoryProfile struct {
	UserID              string       `json:"user_id"`
	Memories            []MemoryItem `json:"memories"`
	PreferredCategories []string     `json:"preferred_categories"`
	DislikedCategories  []string     `json:"disliked_categories"`
	CommunicationStyle  string       `json:"communication_style"`
	ResponseFormat      string       `json:"response_format"`
	AnalysisDepth       string       `json:"analysis_depth"`
	TotalMemories       int          `json:"total_memories"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// ConversationContext tracks per-session discussion state. Created on the
// first message of a session, updated every turn, evicted with the session.
type ConversationContext struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	CurrentTopic    string    `json:"current_topic"`
	DiscussedTopics []string  `json:"discussed_topics"`
	MentionedNames  []string  `json:"mentioned_entities"`
	UserQuestions   []string  `json:"user_questions"`
	MessageCount    int       `json:"message_count"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

// SearchRecord is one append-only search-history entry.
type SearchRecord struct {
	UserID      string    `json:"user_id"`
	Query       string    `json:"query"`
	Keywords    []string  `json:"keywords"`
	ResultCount int       `json:"result_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// APILogRecord is one append-only pipeline-run log entry.
type APILogRecord struct {
	Endpoint  string        `json:"endpoint"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
