package search

import (
	"encoding/json"
	"testing"
)

func TestNormalizeLineOriented(t *testing.T) {
	text := `Title: AI breakthrough announced
Link: https://example.com/ai
Source: Tech Daily
Date: 2026-08-20
Snippet: Researchers announced a new model.

标题: 新能源汽车销量创新高
链接: https://example.com/ev
来源: 财经网
日期: 2026-08-21
摘要: 八月销量数据出炉。`

	records := Normalize(text)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Title != "AI breakthrough announced" {
		t.Errorf("title = %q", records[0].Title)
	}
	if records[0].URL != "https://example.com/ai" {
		t.Errorf("url = %q", records[0].URL)
	}
	if records[1].Source != "财经网" {
		t.Errorf("source = %q", records[1].Source)
	}
	if records[1].Date != "2026-08-21" {
		t.Errorf("date = %q", records[1].Date)
	}
}

func TestNormalizeLineOrientedDropsIncomplete(t *testing.T) {
	text := `Title: No link here
Source: Somewhere

Title: Complete record
Link: https://example.com/ok`

	records := Normalize(text)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].URL != "https://example.com/ok" {
		t.Errorf("url = %q", records[0].URL)
	}
}

func TestNormalizeResultList(t *testing.T) {
	raw := `[
		{"title": "Story A", "link": "https://example.com/a", "source": "Wire", "date": "2026-08-22", "snippet": "..."},
		{"title": "Story B", "url": "https://example.com/b", "source": {"name": "Agency"}},
		{"title": "", "link": "https://example.com/dropped"},
		{"link": "https://example.com/no-title"}
	]`
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatal(err)
	}

	records := Normalize(payload)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].Source != "Agency" {
		t.Errorf("object-shaped source not unwrapped: %q", records[1].Source)
	}
}

func TestNormalizeNewsResultsMap(t *testing.T) {
	raw := `{"search_metadata": {}, "news_results": [
		{"title": "Wrapped", "link": "https://example.com/w", "date": "3 hours ago"}
	]}`
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatal(err)
	}

	records := Normalize(payload)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Date != "3 hours ago" {
		t.Errorf("date = %q", records[0].Date)
	}
}

func TestNormalizeUnrecognizedPayload(t *testing.T) {
	if records := Normalize(42); records != nil {
		t.Errorf("expected nil for unrecognized payload, got %v", records)
	}
	if records := Normalize(map[string]any{"other": 1}); records != nil {
		t.Errorf("expected nil for map without news_results, got %v", records)
	}
}

func TestTimeWindowParam(t *testing.T) {
	tests := []struct {
		window   string
		expected string
	}{
		{"1d", "d"},
		{"1w", "w"},
		{"1m", "m"},
		{"1y", "y"},
		{"bogus", "w"},
		{"", "w"},
	}

	for _, tt := range tests {
		if got := TimeWindowParam(tt.window); got != tt.expected {
			t.Errorf("TimeWindowParam(%q) = %q, want %q", tt.window, got, tt.expected)
		}
	}
}
