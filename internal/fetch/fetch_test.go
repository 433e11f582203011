package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractFromHTMLArticleSelector(t *testing.T) {
	body := strings.Repeat("这是一段正文内容，描述了今天的新闻。", 20)
	html := `<html><body>
		<nav>navigation junk</nav>
		<article>` + body + `</article>
		<footer>footer junk</footer>
	</body></html>`

	text := ExtractFromHTML(html)
	if !strings.Contains(text, "这是一段正文内容") {
		t.Errorf("article body not extracted: %q", text[:min(80, len(text))])
	}
	if strings.Contains(text, "navigation junk") || strings.Contains(text, "footer junk") {
		t.Error("chrome nodes leaked into extracted text")
	}
}

func TestExtractFromHTMLParagraphFallback(t *testing.T) {
	html := `<html><body>
		<p>short</p>
		<p>This paragraph is long enough to be kept in the fallback path.</p>
		<p>Another paragraph that clears the minimum block length easily.</p>
	</body></html>`

	text := ExtractFromHTML(html)
	if !strings.Contains(text, "long enough to be kept") {
		t.Errorf("fallback paragraph missing: %q", text)
	}
	if strings.Contains(text, "short") {
		t.Error("sub-minimum block should be dropped")
	}
}

func TestExtractFromHTMLShortSelectorFallsThrough(t *testing.T) {
	html := `<html><body>
		<article>too short</article>
		<p>The article tag content was too short, so this paragraph should win instead.</p>
	</body></html>`

	text := ExtractFromHTML(html)
	if !strings.Contains(text, "this paragraph should win") {
		t.Errorf("short selector match should fall through to paragraphs: %q", text)
	}
}

func TestCleanTextWhitespaceAndPunctuation(t *testing.T) {
	in := "hello\n\n  world！  《tag》 50% done"
	got := cleanText(in)
	if strings.Contains(got, "\n") || strings.Contains(got, "  ") {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	if strings.Contains(got, "《") || strings.Contains(got, "》") {
		t.Errorf("disallowed punctuation kept: %q", got)
	}
	if !strings.Contains(got, "world！") {
		t.Errorf("allowed CJK punctuation dropped: %q", got)
	}
	if !strings.Contains(got, "50%") {
		t.Errorf("percent dropped: %q", got)
	}
}

func TestCleanTextTruncation(t *testing.T) {
	in := strings.Repeat("字", maxContentLen+500)
	got := cleanText(in)
	runes := []rune(got)
	if len(runes) != maxContentLen+3 {
		t.Errorf("truncated length = %d runes, want %d", len(runes), maxContentLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated text must end with ellipsis")
	}
}

func TestFetchReturnsEmptyOnError(t *testing.T) {
	f := New()
	if got := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable"); got != "" {
		t.Errorf("expected empty string on connection failure, got %q", got)
	}
	if got := f.Fetch(context.Background(), "://bad-url"); got != "" {
		t.Errorf("expected empty string on bad URL, got %q", got)
	}
}

func TestFetchNon200ReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New()
	if got := f.Fetch(context.Background(), srv.URL); got != "" {
		t.Errorf("expected empty string on 404, got %q", got)
	}
}

func TestFetchHappyPath(t *testing.T) {
	body := strings.Repeat("Plenty of readable article text right here. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("expected browser-like User-Agent, got %q", ua)
		}
		w.Write([]byte("<html><body><article>" + body + "</article></body></html>"))
	}))
	defer srv.Close()

	f := New()
	got := f.Fetch(context.Background(), srv.URL)
	if !strings.Contains(got, "readable article text") {
		t.Errorf("body not extracted: %q", got)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
