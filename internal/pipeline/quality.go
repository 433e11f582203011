package pipeline

import (
	"strings"
	"unicode"

	"newsmosaic/internal/agent"
	"newsmosaic/internal/core"
)

// responseQuality scores the answer on a fixed rubric: base 0.6, plus
// 0.1 each for substantial length, personalization, memory use, and news
// grounding, capped at 1.0.
func responseQuality(answer string, personalized, memoryUsed, newsContext bool) float64 {
	score := 0.6
	if len([]rune(answer)) >= 100 {
		score += 0.1
	}
	if personalized {
		score += 0.1
	}
	if memoryUsed {
		score += 0.1
	}
	if newsContext {
		score += 0.1
	}
	return core.ClampScore(score, 0, 1)
}

// contextRelevance scores how much of the user's message is reflected in
// the retrieved titles: base 0.5, plus keyword overlap weighted 0.3,
// plus 0.2 when any news was retrieved at all.
func contextRelevance(message string, titles []string, newsPresent bool) float64 {
	score := 0.5
	if newsPresent {
		score += 0.2
	}

	tokens := tokenize(message)
	if len(tokens) > 0 && len(titles) > 0 {
		joined := strings.ToLower(strings.Join(titles, " "))
		matched := 0
		for _, token := range tokens {
			if strings.Contains(joined, token) {
				matched++
			}
		}
		score += 0.3 * float64(matched) / float64(len(tokens))
	}
	return core.ClampScore(score, 0, 1)
}

// tokenize yields lowercase ASCII words plus CJK bigrams, the overlap
// unit for relevance scoring.
func tokenize(s string) []string {
	var tokens []string
	var word []rune
	var prev rune

	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			if prev != 0 {
				tokens = append(tokens, string([]rune{prev, r}))
			}
			prev = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			prev = 0
			word = append(word, r)
		default:
			prev = 0
			flush()
		}
	}
	flush()
	return tokens
}

// suggestedQuestions proposes follow-ups from card topics and retrieved
// titles, topped up with generic prompts, capped at 5.
func suggestedQuestions(topics, titles []string) []string {
	const limit = 5
	var questions []string
	seen := map[string]bool{}
	add := func(q string) {
		if !seen[q] && len(questions) < limit {
			seen[q] = true
			questions = append(questions, q)
		}
	}

	for _, topic := range topics {
		add("关于" + topic + "还有什么最新进展？")
	}
	for _, title := range titles {
		add("能详细讲讲「" + firstRunes(title, 30) + "」吗？")
	}
	add("最近有什么值得关注的新闻？")
	add("帮我总结一下今天的热点。")
	return questions
}

// relatedTopics collects topic tags from cards and the agent run,
// deduplicated and capped at 10.
func relatedTopics(topics []string, agentResult *agent.Result) []string {
	const limit = 10
	var out []string
	seen := map[string]bool{}
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t != "" && !seen[t] && len(out) < limit {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, t := range topics {
		add(t)
	}
	if agentResult != nil {
		for _, t := range agentResult.Keywords {
			add(t)
		}
	}
	return out
}
