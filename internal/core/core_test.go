package core

import (
	"testing"
	"time"
)

func TestArticleIDDeterministic(t *testing.T) {
	a := ArticleID("OpenAI releases new model", "https://example.com/a", "session-1")
	b := ArticleID("OpenAI releases new model", "https://example.com/a", "session-1")
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32-char md5 hex ID, got %d chars", len(a))
	}
}

func TestArticleIDScopeSeparation(t *testing.T) {
	a := ArticleID("title", "https://example.com/a", "session-1")
	b := ArticleID("title", "https://example.com/a", "session-2")
	if a == b {
		t.Error("different scopes must produce different IDs")
	}
}

func TestCardID(t *testing.T) {
	at := time.Unix(1700000000, 0)

	tests := []struct {
		name      string
		articleID string
		rag       bool
		expected  string
	}{
		{"plain card", "abc123", false, "card_abc123_1700000000"},
		{"rag card", "abc123", true, "rag_card_abc123_1700000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CardID(tt.articleID, at, tt.rag)
			if got != tt.expected {
				t.Errorf("CardID = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		min, max float64
		expected float64
	}{
		{"in range", 5, 0, 10, 5},
		{"below min", -2, -1, 1, -1},
		{"above max", 15, 0, 10, 10},
		{"at boundary", 10, 0, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampScore(tt.v, tt.min, tt.max); got != tt.expected {
				t.Errorf("ClampScore(%v) = %v, want %v", tt.v, got, tt.expected)
			}
		})
	}
}
