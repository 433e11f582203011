package core

import (
	"fmt"
	"time"
)

// Canonical enum values for card fields. Every enum-typed field holds one of
// these after normalization; free-form model output is mapped by the cards
// package before a card is returned.

// ImportanceLevel classifies how significant an article is.
type ImportanceLevel string

const (
	ImportanceCritical ImportanceLevel = "critical"
	ImportanceHigh     ImportanceLevel = "high"
	ImportanceMedium   ImportanceLevel = "medium"
	ImportanceLow      ImportanceLevel = "low"
	ImportanceMinimal  ImportanceLevel = "minimal"
)

// CredibilityLevel classifies source trustworthiness.
type CredibilityLevel string

const (
	CredibilityVerified     CredibilityLevel = "verified"
	CredibilityReliable     CredibilityLevel = "reliable"
	CredibilityModerate     CredibilityLevel = "moderate"
	CredibilityQuestionable CredibilityLevel = "questionable"
	CredibilityUnverified   CredibilityLevel = "unverified"
)

// SentimentLabel classifies overall tone.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentMixed    SentimentLabel = "mixed"
)

// ConfidenceLevel grades analysis confidence.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// DifficultyLevel grades reading difficulty.
type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// EntityType classifies a named entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityOther        EntityType = "other"
)

// ThemeAnalysis names the article's primary and secondary themes.
type ThemeAnalysis struct {
	Primary     string   `json:"primary_theme"`
	Secondary   []string `json:"secondary_themes"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description,omitempty"`
}

// SentimentAnalysis holds the normalized sentiment verdict.
type SentimentAnalysis struct {
	Label      SentimentLabel  `json:"label"`
	Score      float64         `json:"score"` // [-1, 1]
	Confidence ConfidenceLevel `json:"confidence"`
	Reason     string          `json:"reason,omitempty"`
}

// ImportanceAnalysis holds the normalized importance verdict.
type ImportanceAnalysis struct {
	Score  float64         `json:"score"` // [0, 10]
	Level  ImportanceLevel `json:"level"`
	Reason string          `json:"reason,omitempty"`
}

// CredibilityAnalysis holds the normalized credibility verdict.
type CredibilityAnalysis struct {
	Score  float64          `json:"score"` // [0, 10]
	Level  CredibilityLevel `json:"level"`
	Reason string           `json:"reason,omitempty"`
}

// Entity is one named entity mentioned by the article.
type Entity struct {
	Name         string     `json:"entity"`
	Type         EntityType `json:"entity_type"`
	MentionCount int        `json:"mention_count"`
	Confidence   float64    `json:"confidence"`
}

// TimelinessAnalysis is computed deterministically from article age and
// related-news counts, not by the language model.
type TimelinessAnalysis struct {
	Urgency       float64 `json:"urgency"`   // [0, 10]
	Freshness     float64 `json:"freshness"` // [0, 10]
	TimeSensitive bool    `json:"time_sensitive"`
}

// RAGMetadata records the related-news context a card was enriched with.
type RAGMetadata struct {
	RelatedNewsIDs   []string           `json:"related_news_ids,omitempty"`
	SimilarityScores map[string]float64 `json:"similarity_scores,omitempty"`
	Context          string             `json:"rag_context,omitempty"`
	TrendAnalysis    string             `json:"trend_analysis,omitempty"`
}

// NewsCard is the enriched, structured view of one article.
type NewsCard struct {
	ID              string              `json:"id"`
	ArticleID       string              `json:"article_id"`
	Title           string              `json:"title"`
	Summary         string              `json:"summary"`
	EnhancedSummary string              `json:"enhanced_summary,omitempty"`
	KeyPoints       []string            `json:"key_points"`
	Keywords        []string            `json:"keywords"`
	Hashtags        []string            `json:"hashtags"`
	Theme           ThemeAnalysis       `json:"theme"`
	Sentiment       SentimentAnalysis   `json:"sentiment"`
	Importance      ImportanceAnalysis  `json:"importance"`
	Credibility     CredibilityAnalysis `json:"credibility"`
	Entities        []Entity            `json:"entities"`
	Timeliness      TimelinessAnalysis  `json:"timeliness"`
	Audience        string              `json:"audience,omitempty"`
	ReadingTime     int                 `json:"reading_time"` // minutes
	Difficulty      DifficultyLevel     `json:"difficulty"`
	RAG             RAGMetadata         `json:"rag,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
	GeneratedAt     time.Time           `json:"generated_at"`
	GenerationTime  time.Duration       `json:"generation_time"`
	Model           string              `json:"model,omitempty"`
}

// CardID builds the deterministic card identifier for an article at a
// point in time. RAG-enriched cards carry the rag_card_ prefix.
func CardID(articleID string, at time.Time, rag bool) string {
	prefix := "card"
	if rag {
		prefix = "rag_card"
	}
	return fmt.Sprintf("%s_%s_%d", prefix, articleID, at.Unix())
}

// ClampScore bounds v into [min, max].
func ClampScore(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
