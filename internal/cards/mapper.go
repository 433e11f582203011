package cards

import (
	"fmt"
	"sort"
	"strings"

	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
)

// The model is instructed but not guaranteed to emit closed-vocabulary
// enum values. These tables are the schema-of-record: every enum-typed
// card field passes through them before a card leaves the engine.

var importanceTable = map[string]core.ImportanceLevel{
	"critical": core.ImportanceCritical,
	"high":     core.ImportanceHigh,
	"medium":   core.ImportanceMedium,
	"low":      core.ImportanceLow,
	"minimal":  core.ImportanceMinimal,
	"极高":       core.ImportanceCritical,
	"非常高":      core.ImportanceCritical,
	"重大":       core.ImportanceCritical,
	"高":        core.ImportanceHigh,
	"重要":       core.ImportanceHigh,
	"中等":       core.ImportanceMedium,
	"一般":       core.ImportanceMedium,
	"普通":       core.ImportanceMedium,
	"低":        core.ImportanceLow,
	"较低":       core.ImportanceLow,
	"最低":       core.ImportanceMinimal,
	"微小":       core.ImportanceMinimal,
}

var credibilityTable = map[string]core.CredibilityLevel{
	"verified":     core.CredibilityVerified,
	"reliable":     core.CredibilityReliable,
	"moderate":     core.CredibilityModerate,
	"questionable": core.CredibilityQuestionable,
	"unverified":   core.CredibilityUnverified,
	"已验证":          core.CredibilityVerified,
	"官方":           core.CredibilityVerified,
	"权威":           core.CredibilityVerified,
	"可靠":           core.CredibilityReliable,
	"可信":           core.CredibilityReliable,
	"中等":           core.CredibilityModerate,
	"一般":           core.CredibilityModerate,
	"中等可信":         core.CredibilityModerate,
	"中等偏低":         core.CredibilityModerate,
	"中等偏低可信度":      core.CredibilityModerate,
	"低":            core.CredibilityQuestionable,
	"较低":           core.CredibilityQuestionable,
	"不可信":          core.CredibilityUnverified,
	"未验证":          core.CredibilityUnverified,
}

var sentimentTable = map[string]core.SentimentLabel{
	"positive": core.SentimentPositive,
	"negative": core.SentimentNegative,
	"neutral":  core.SentimentNeutral,
	"mixed":    core.SentimentMixed,
	"正面":       core.SentimentPositive,
	"积极":       core.SentimentPositive,
	"乐观":       core.SentimentPositive,
	"负面":       core.SentimentNegative,
	"消极":       core.SentimentNegative,
	"悲观":       core.SentimentNegative,
	"中性":       core.SentimentNeutral,
	"客观":       core.SentimentNeutral,
	"平和":       core.SentimentNeutral,
	"混合":       core.SentimentMixed,
}

var confidenceTable = map[string]core.ConfidenceLevel{
	"high":   core.ConfidenceHigh,
	"medium": core.ConfidenceMedium,
	"low":    core.ConfidenceLow,
	"高":      core.ConfidenceHigh,
	"很高":     core.ConfidenceHigh,
	"非常高":    core.ConfidenceHigh,
	"中等":     core.ConfidenceMedium,
	"一般":     core.ConfidenceMedium,
	"普通":     core.ConfidenceMedium,
	"低":      core.ConfidenceLow,
	"较低":     core.ConfidenceLow,
	"很低":     core.ConfidenceLow,
}

var difficultyTable = map[string]core.DifficultyLevel{
	"easy":   core.DifficultyEasy,
	"medium": core.DifficultyMedium,
	"hard":   core.DifficultyHard,
	"简单":     core.DifficultyEasy,
	"容易":     core.DifficultyEasy,
	"基础":     core.DifficultyEasy,
	"中等":     core.DifficultyMedium,
	"一般":     core.DifficultyMedium,
	"普通":     core.DifficultyMedium,
	"困难":     core.DifficultyHard,
	"复杂":     core.DifficultyHard,
	"高级":     core.DifficultyHard,
}

var entityTypeTable = map[string]core.EntityType{
	"person":       core.EntityPerson,
	"organization": core.EntityOrganization,
	"location":     core.EntityLocation,
	"other":        core.EntityOther,
	"人物":           core.EntityPerson,
	"人名":           core.EntityPerson,
	"机构":           core.EntityOrganization,
	"组织":           core.EntityOrganization,
	"公司":           core.EntityOrganization,
	"地点":           core.EntityLocation,
	"地名":           core.EntityLocation,
	"其他":           core.EntityOther,
}

// mapLabel resolves raw against a table: exact match first, then substring
// in either direction, else the default with a warning.
func mapLabel[T ~string](raw string, table map[string]T, fallback T, field string) T {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return fallback
	}
	if v, ok := table[key]; ok {
		return v
	}
	// longest synonym wins so 中等偏低可信度 does not stop at 低
	var keys []string
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	for _, k := range keys {
		if strings.Contains(key, k) || strings.Contains(k, key) {
			return table[k]
		}
	}
	logger.Warn("unknown enum label, using default", "field", field, "value", raw)
	return fallback
}

func MapImportance(raw string) core.ImportanceLevel {
	return mapLabel(raw, importanceTable, core.ImportanceMedium, "importance_level")
}

func MapCredibility(raw string) core.CredibilityLevel {
	return mapLabel(raw, credibilityTable, core.CredibilityModerate, "credibility_level")
}

func MapSentiment(raw string) core.SentimentLabel {
	return mapLabel(raw, sentimentTable, core.SentimentNeutral, "sentiment_label")
}

func MapConfidence(raw string) core.ConfidenceLevel {
	return mapLabel(raw, confidenceTable, core.ConfidenceMedium, "confidence")
}

func MapDifficulty(raw string) core.DifficultyLevel {
	return mapLabel(raw, difficultyTable, core.DifficultyMedium, "difficulty")
}

func MapEntityType(raw string) core.EntityType {
	return mapLabel(raw, entityTypeTable, core.EntityOther, "entity_type")
}

// asString coerces a decoded JSON value to a string.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", x), ".0")
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", x))
	}
}

// asStringList coerces a decoded JSON value to a string list. Lists
// serialized as maps become "key: value" strings preserving both sides.
func asStringList(v any) []string {
	switch x := v.(type) {
	case []any:
		var out []string
		for _, item := range x {
			switch it := item.(type) {
			case map[string]any:
				for _, k := range sortedKeys(it) {
					out = append(out, fmt.Sprintf("%s: %s", k, asString(it[k])))
				}
			default:
				if s := asString(item); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case map[string]any:
		var out []string
		for _, k := range sortedKeys(x) {
			out = append(out, fmt.Sprintf("%s: %s", k, asString(x[k])))
		}
		return out
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []string{s}
		}
		return nil
	default:
		return nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asFloat(v any, fallback float64) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(x), "%g", &f); err == nil {
			return f
		}
	}
	return fallback
}

func asInt(v any, fallback int) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(x), "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}

// readingTimeFrom extracts the first run of digits from a free-form
// duration like "约3分钟" or "3 min". Defaults to 1 minute.
func readingTimeFrom(v any) int {
	if f, ok := v.(float64); ok && f >= 1 {
		return int(f)
	}
	s := asString(v)
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			var n int
			fmt.Sscanf(s[start:i], "%d", &n)
			if n >= 1 {
				return n
			}
			start = -1
		}
	}
	if start >= 0 {
		var n int
		fmt.Sscanf(s[start:], "%d", &n)
		if n >= 1 {
			return n
		}
	}
	return 1
}

// normalizeEntities converts both list-of-records and map-shaped entity
// payloads into entity records. Map form gets confidence 0.8.
func normalizeEntities(v any) []core.Entity {
	var out []core.Entity
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			rec, ok := item.(map[string]any)
			if !ok {
				if name := asString(item); name != "" {
					out = append(out, core.Entity{Name: name, Type: core.EntityOther, MentionCount: 1, Confidence: 0.8})
				}
				continue
			}
			name := asString(rec["entity"])
			if name == "" {
				name = asString(rec["name"])
			}
			if name == "" {
				continue
			}
			count := asInt(rec["mention_count"], 1)
			if count < 1 {
				count = 1
			}
			out = append(out, core.Entity{
				Name:         name,
				Type:         MapEntityType(asString(rec["entity_type"])),
				MentionCount: count,
				Confidence:   core.ClampScore(asFloat(rec["confidence"], 0.5), 0, 1),
			})
		}
	case map[string]any:
		for _, name := range sortedKeys(x) {
			out = append(out, core.Entity{
				Name:         name,
				Type:         MapEntityType(asString(x[name])),
				MentionCount: 1,
				Confidence:   0.8,
			})
		}
	}
	return out
}
