// Package fetch extracts readable article text from web pages.
package fetch

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsmosaic/internal/logger"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fetchTimeout   = 30 * time.Second
	maxContentLen  = 20000 // runes
	minSelectorLen = 200
	minBlockLen    = 20
)

// chromeSelectors are removed before extraction.
const chromeSelectors = "script, style, nav, header, footer, aside, .ad, .ads, .advertisement"

// contentSelectors are probed in order; the first match with enough text wins.
var contentSelectors = []string{
	"article",
	".article-content",
	".article-body",
	".post-content",
	".entry-content",
	".content",
	".main-content",
	".story-content",
	".news-content",
	`[itemprop="articleBody"]`,
	"main",
	`[role="main"]`,
}

// Fetcher is the article-body port.
type Fetcher interface {
	// Fetch returns the extracted body text for a URL, or "" on any
	// failure. It never returns an error.
	Fetch(ctx context.Context, url string) string
}

// HTTPFetcher fetches pages over HTTP with a browser-like identity.
type HTTPFetcher struct {
	client *http.Client
}

// New creates an HTTPFetcher with the default timeout.
func New() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch downloads the page and extracts its body text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Debug("fetch request build failed", "url", url, "error", err.Error())
		return ""
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Debug("fetch failed", "url", url, "error", err.Error())
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug("fetch got non-200", "url", url, "status", resp.StatusCode)
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logger.Debug("fetch parse failed", "url", url, "error", err.Error())
		return ""
	}

	return extract(doc)
}

// ExtractFromHTML extracts body text from an HTML string. Used directly in
// tests and by callers that already hold the page.
func ExtractFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return extract(doc)
}

func extract(doc *goquery.Document) string {
	doc.Find(chromeSelectors).Remove()

	for _, selector := range contentSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.First().Text())
		if len([]rune(text)) > minSelectorLen {
			return cleanText(text)
		}
	}

	// paragraph fallback: gather every block with a sentence's worth of text
	var parts []string
	doc.Find("p, div").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Is("p, div") {
			return
		}
		text := strings.TrimSpace(s.Text())
		if len([]rune(text)) > minBlockLen {
			parts = append(parts, text)
		}
	})
	return cleanText(strings.Join(parts, " "))
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses whitespace, drops disallowed punctuation, and bounds
// the result.
func cleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	text = strings.TrimSpace(b.String())

	runes := []rune(text)
	if len(runes) > maxContentLen {
		text = string(runes[:maxContentLen]) + "..."
	}
	return text
}

// keptPunctuation is the allowed CJK and Latin sentence punctuation,
// including the fullwidth quote pairs.
const keptPunctuation = "，。！？；：（）【】“”‘’.,!?;:'\"()-%"

func keepRune(r rune) bool {
	switch {
	case r == ' ':
		return true
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		return true
	case r >= 0x4e00 && r <= 0x9fff: // CJK unified ideographs
		return true
	case strings.ContainsRune(keptPunctuation, r):
		return true
	default:
		return false
	}
}
