package interests

import (
	"fmt"
	"strings"
)

// relatedTable is the static semantic fallback used when the language
// model is unavailable or returns nothing usable. Keys are query keywords;
// values are terms considered related.
var relatedTable = map[string][]string{
	"轨道":   {"地铁", "高铁", "火车", "轻轨", "铁路"},
	"轨道交通": {"地铁", "高铁", "火车", "轻轨", "铁路"},
	"交通":   {"地铁", "高铁", "火车", "飞机", "汽车", "公交"},
	"飞机":   {"航空", "民航", "机场"},
	"汽车":   {"新能源", "电动车", "车展"},
	"火车":   {"高铁", "动车", "铁路"},
	"体育":   {"足球", "篮球", "网球", "乒乓球", "运动"},
	"运动":   {"足球", "篮球", "健身", "跑步"},
	"球类":   {"足球", "篮球", "网球", "乒乓球"},
	"科技":   {"AI", "人工智能", "互联网", "芯片"},
	"AI":   {"人工智能", "机器学习", "深度学习"},
	"人工智能": {"AI", "机器学习", "深度学习"},
	"娱乐":   {"电影", "音乐", "明星", "综艺"},
	"文化":   {"历史", "艺术", "文学"},
	"财经":   {"金融", "股票", "基金", "经济"},
	"金融":   {"股票", "基金", "银行", "经济"},
	"健康":   {"医疗", "养生", "健身"},
	"医疗":   {"医院", "药品", "健康"},
}

// relatedByTable matches current interests against the static table and
// plain substring overlap with the keyword.
func relatedByTable(current []string, keyword string) []string {
	terms := map[string]bool{}
	for key, values := range relatedTable {
		if containsFold(keyword, key) || containsFold(key, keyword) {
			for _, v := range values {
				terms[v] = true
			}
		}
	}

	var related []string
	seen := map[string]bool{}
	for _, tag := range current {
		if seen[tag] {
			continue
		}
		match := containsFold(tag, keyword) || containsFold(keyword, tag)
		if !match {
			for term := range terms {
				if containsFold(tag, term) || containsFold(term, tag) {
					match = true
					break
				}
			}
		}
		if match {
			seen[tag] = true
			related = append(related, tag)
		}
	}
	return related
}

func relatedPrompt(current []string, keyword string) string {
	return fmt.Sprintf(`你是一个兴趣管理助手。用户当前的兴趣列表：%s
请从这个列表中找出与"%s"语义相关的兴趣（例如"轨道"与"地铁"、"高铁"、"火车"相关）。
只输出列表中已有的兴趣，用逗号分隔。如果没有相关的兴趣，输出"无"。`,
		strings.Join(current, "、"), keyword)
}
