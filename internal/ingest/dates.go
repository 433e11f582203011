package ingest

import (
	"strings"
	"time"
)

// relativeKeywords mark upstream dates that describe an offset from now
// ("3 hours ago", "2天前"). Any match normalizes to today.
var relativeKeywords = []string{
	"分钟前", "小时前", "天前", "周前", "刚刚", "今天", "昨天",
	"minute ago", "minutes ago", "hour ago", "hours ago",
	"day ago", "days ago", "week ago", "weeks ago", "ago", "前",
}

// dateLayouts are tried in order against the raw date string.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

const dateFormat = "2006-01-02"

// NormalizeDate converts an upstream date string to YYYY-MM-DD. Relative
// dates and anything unparseable become today; parsed dates in the future
// are clamped to today. The result is never empty and the function is
// idempotent.
func NormalizeDate(raw string, now time.Time) string {
	today := now.Format(dateFormat)

	s := strings.TrimSpace(raw)
	if s == "" {
		return today
	}

	lower := strings.ToLower(s)
	for _, kw := range relativeKeywords {
		if strings.Contains(lower, kw) {
			return today
		}
	}

	for _, layout := range dateLayouts {
		candidate := s
		// fixed-width layouts may be a prefix of a longer timestamp
		if len(layout) < len(candidate) && !strings.ContainsAny(layout, "J") {
			candidate = candidate[:len(layout)]
		}
		t, err := time.Parse(layout, candidate)
		if err != nil {
			// retry on the full string for variable-width layouts
			t, err = time.Parse(layout, s)
		}
		if err != nil {
			continue
		}
		date := t.Format(dateFormat)
		if date > today {
			return today
		}
		return date
	}
	return today
}
