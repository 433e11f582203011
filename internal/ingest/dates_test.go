package ingest

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"iso date", "2026-08-20", "2026-08-20"},
		{"slash date", "2026/08/20", "2026-08-20"},
		{"us date", "08/20/2026", "2026-08-20"},
		{"iso timestamp", "2026-08-20 09:30:00", "2026-08-20"},
		{"long month", "August 20, 2026", "2026-08-20"},
		{"short month", "Aug 20, 2026", "2026-08-20"},
		{"day first long", "20 August 2026", "2026-08-20"},
		{"relative english", "3 hours ago", "2026-08-24"},
		{"relative chinese", "2小时前", "2026-08-24"},
		{"relative days chinese", "5天前", "2026-08-24"},
		{"unparseable", "sometime last century", "2026-08-24"},
		{"empty", "", "2026-08-24"},
		{"whitespace", "   ", "2026-08-24"},
		{"future clamped", "2027-01-01", "2026-08-24"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDate(tt.raw, testNow); got != tt.expected {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	inputs := []string{"2026-08-20", "3 days ago", "garbage", "Aug 1, 2026"}
	for _, raw := range inputs {
		once := NormalizeDate(raw, testNow)
		twice := NormalizeDate(once, testNow)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}
