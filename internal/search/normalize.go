package search

import (
	"strings"

	"newsmosaic/internal/core"
)

// Normalize converts any of the three upstream result shapes into uniform
// records: a line-oriented text blob, a list of result maps, or a response
// map carrying a news_results list. Unrecognized payloads yield an empty
// slice; records lacking a title or URL are dropped.
func Normalize(payload any) []core.RawArticle {
	switch v := payload.(type) {
	case string:
		return parseLineOriented(v)
	case []any:
		return parseResultList(v)
	case map[string]any:
		if list, ok := v["news_results"].([]any); ok {
			return parseResultList(list)
		}
		return nil
	default:
		return nil
	}
}

// line-oriented field labels, English and Chinese
var lineFields = map[string]string{
	"title":   "title",
	"标题":      "title",
	"link":    "url",
	"url":     "url",
	"链接":      "url",
	"source":  "source",
	"来源":      "source",
	"date":    "date",
	"日期":      "date",
	"snippet": "snippet",
	"摘要":      "snippet",
}

func parseLineOriented(text string) []core.RawArticle {
	var records []core.RawArticle
	var current *core.RawArticle

	flush := func() {
		if current != nil && current.Title != "" && current.URL != "" {
			records = append(records, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		field, known := lineFields[key]
		if !known {
			continue
		}
		if field == "title" {
			flush()
			current = &core.RawArticle{}
		}
		if current == nil {
			continue
		}
		switch field {
		case "title":
			current.Title = value
		case "url":
			current.URL = value
		case "source":
			current.Source = value
		case "date":
			current.Date = value
		case "snippet":
			current.Snippet = value
		}
	}
	flush()
	return records
}

// splitLabel splits "Label: value" on the first colon (ASCII or fullwidth).
func splitLabel(line string) (key, value string, ok bool) {
	idx := strings.IndexAny(line, ":：")
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(line[:idx]))
	rest := line[idx:]
	// skip the colon rune itself, which may be multi-byte
	if strings.HasPrefix(rest, "：") {
		value = strings.TrimSpace(rest[len("："):])
	} else {
		value = strings.TrimSpace(rest[1:])
	}
	return key, value, true
}

func parseResultList(list []any) []core.RawArticle {
	var records []core.RawArticle
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := core.RawArticle{
			Title:   stringField(m, "title"),
			URL:     firstStringField(m, "link", "url"),
			Source:  sourceField(m),
			Date:    stringField(m, "date"),
			Snippet: stringField(m, "snippet"),
		}
		if rec.Title == "" || rec.URL == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func firstStringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	return ""
}

// sourceField tolerates both a plain string and a {name: ...} object.
func sourceField(m map[string]any) string {
	switch v := m["source"].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return stringField(v, "name")
	default:
		return ""
	}
}
