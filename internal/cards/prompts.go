package cards

import (
	"fmt"
	"strings"

	"newsmosaic/internal/core"
)

// Prompt budget per analysis. Bodies are truncated before interpolation
// so a long article cannot blow the context window.
const (
	promptContentLimit   = 2000
	analysisContentLimit = 1000
)

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func articleBody(a *core.Article) string {
	if a.Content != "" {
		return a.Content
	}
	if a.Snippet != "" {
		return a.Snippet
	}
	return a.Title
}

func withRAGContext(prompt, ragContext string) string {
	if ragContext == "" {
		return prompt
	}
	return ragContext + "\n\n" + prompt
}

func summaryPrompt(a *core.Article, maxLen int, ragContext string) string {
	p := fmt.Sprintf(`请对以下新闻内容进行结构化分析，返回JSON格式的结果。

新闻标题：%s
新闻内容：%s

返回的JSON包含以下字段：
1. summary: 智能摘要（不超过%d字符）
2. enhanced_summary: 增强摘要，包含背景信息（不超过%d字符）
3. key_points: 核心要点列表（最多5个要点）
4. keywords: 关键词列表（最多10个）
5. hashtags: 推荐标签（最多5个，以#开头）
6. audience: 目标受众
7. reading_time: 预计阅读时长（分钟）
8. difficulty: 阅读难度（easy/medium/hard）

请确保返回的是有效的JSON格式。`,
		a.Title, truncateRunes(articleBody(a), promptContentLimit), maxLen, maxLen*2)
	return withRAGContext(p, ragContext)
}

func sentimentPrompt(a *core.Article, ragContext string) string {
	p := fmt.Sprintf(`请对以下新闻内容进行情感分析，返回JSON格式。

新闻内容：%s

返回的JSON包含以下字段：
1. label: 情感标签（positive/negative/neutral/mixed）
2. score: 情感分数（-1.0到1.0）
3. confidence: 置信度（low/medium/high）
4. reason: 情感判断原因

请确保返回的是有效的JSON格式。`,
		truncateRunes(articleBody(a), analysisContentLimit))
	return withRAGContext(p, ragContext)
}

func themesPrompt(a *core.Article, ragContext string) string {
	p := fmt.Sprintf(`请对以下新闻内容进行主题分析，返回JSON格式。

新闻标题：%s
新闻内容：%s
新闻分类：%s

返回的JSON包含以下字段：
1. primary_theme: 主要主题
2. secondary_themes: 次要主题列表（最多3个）
3. confidence: 主题识别置信度（0.0-1.0）
4. description: 主题说明

请确保返回的是有效的JSON格式。`,
		a.Title, truncateRunes(articleBody(a), analysisContentLimit), a.Category)
	return withRAGContext(p, ragContext)
}

func importancePrompt(a *core.Article, ragContext string) string {
	p := fmt.Sprintf(`请对以下新闻的重要性进行评估，返回JSON格式。

新闻标题：%s
新闻内容：%s
发布日期：%s
新闻来源：%s

评估标准：影响范围、时效性、公众关注度、潜在影响、权威性。

返回的JSON包含以下字段：
1. score: 重要性分数（0.0-10.0）
2. level: 重要性级别（critical/high/medium/low/minimal）
3. reason: 判断原因

请确保返回的是有效的JSON格式。`,
		a.Title, truncateRunes(articleBody(a), analysisContentLimit), a.Date, a.Source)
	return withRAGContext(p, ragContext)
}

func credibilityPrompt(a *core.Article, ragContext string) string {
	p := fmt.Sprintf(`请对以下新闻的可信度进行评估，返回JSON格式。

新闻标题：%s
新闻来源：%s
新闻链接：%s

评估标准：来源权威性、信息完整性、链接可靠性、内容逻辑性。

返回的JSON包含以下字段：
1. score: 可信度分数（0.0-10.0）
2. level: 可信度级别（verified/reliable/moderate/questionable/unverified）
3. reason: 判断原因

请确保返回的是有效的JSON格式。`,
		a.Title, a.Source, a.URL)
	return withRAGContext(p, ragContext)
}

func entitiesPrompt(a *core.Article, ragContext string) string {
	p := fmt.Sprintf(`请对以下新闻内容进行实体识别，返回JSON格式。

新闻标题：%s
新闻内容：%s

返回的JSON包含字段 entities，为实体列表，每个实体包含：
- entity: 实体名称
- entity_type: 实体类型（person/organization/location/other）
- mention_count: 提及次数
- confidence: 识别置信度（0.0-1.0）

请确保返回的是有效的JSON格式。`,
		a.Title, truncateRunes(articleBody(a), analysisContentLimit))
	return withRAGContext(p, ragContext)
}

func trendPrompt(a *core.Article, ragContext string) string {
	return fmt.Sprintf(`%s

基于以上相关新闻上下文，请分析"%s"所处的趋势和发展脉络，给出简短的趋势分析（不超过200字）。`,
		ragContext, a.Title)
}

// buildRAGContextText renders the related-article list into the compact
// context block injected into every analysis prompt.
func buildRAGContextText(related []relatedArticle) string {
	if len(related) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("相关新闻上下文:\n")
	for i, r := range related {
		fmt.Fprintf(&b, "%d. %s (相似度: %.2f)\n", i+1, truncateRunes(r.content, 120), r.score)
	}
	return strings.TrimRight(b.String(), "\n")
}
