package embedding

import "strings"

// separators are tried in order when splitting oversize text; later entries
// cut at finer granularity. The empty string forces a hard rune split.
var separators = []string{
	"\n\n", "\n", "。", "！", "？", ".", "!", "?", ";", "，", ",", " ", "",
}

// Chunk is one piece of a split document.
type Chunk struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Chunker splits text into token-bounded, overlapping chunks.
type Chunker struct {
	chunkSize int // tokens
	overlap   int // tokens
}

// NewChunker creates a chunker. Non-positive arguments fall back to the
// 512/100 defaults.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 100
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}
}

// tokenEstimate approximates the token count as runes/4, minimum 1 for
// non-empty text.
func tokenEstimate(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	est := n / 4
	if est == 0 {
		est = 1
	}
	return est
}

// Split breaks text into chunks of at most chunkSize tokens, adjacent
// chunks sharing roughly overlap tokens.
func (c *Chunker) Split(text string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if tokenEstimate(text) <= c.chunkSize {
		return []Chunk{{Index: 0, Text: text, TokenCount: tokenEstimate(text)}}
	}

	pieces := c.recursiveSplit(text, separators)
	merged := c.mergeWithOverlap(pieces)

	chunks := make([]Chunk, 0, len(merged))
	for i, m := range merged {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: i, Text: m, TokenCount: tokenEstimate(m)})
	}
	// reindex after dropping blanks
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

func (c *Chunker) recursiveSplit(text string, seps []string) []string {
	if tokenEstimate(text) <= c.chunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return c.hardSplit(text)
	}

	sep := seps[0]
	if sep == "" {
		return c.hardSplit(text)
	}
	if !strings.Contains(text, sep) {
		return c.recursiveSplit(text, seps[1:])
	}

	var out []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if tokenEstimate(part) > c.chunkSize {
			out = append(out, c.recursiveSplit(part, seps[1:])...)
		} else {
			out = append(out, part)
		}
	}
	return out
}

// hardSplit cuts by rune windows when no separator helps.
func (c *Chunker) hardSplit(text string) []string {
	window := c.chunkSize * 4 // runes per chunk under the len/4 estimate
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += window {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mergeWithOverlap greedily packs pieces into chunks of at most chunkSize
// tokens, carrying an overlap tail from each emitted chunk into the next.
func (c *Chunker) mergeWithOverlap(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	currentTokens := 0

	emit := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()

		tail := overlapTail(chunk, c.overlap)
		current.WriteString(tail)
		currentTokens = tokenEstimate(tail)
	}

	for _, piece := range pieces {
		tokens := tokenEstimate(piece)
		if currentTokens+tokens > c.chunkSize && current.Len() > 0 {
			emit()
		}
		current.WriteString(piece)
		currentTokens += tokens
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// overlapTail returns the trailing runes of text covering about n tokens.
func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	keep := n * 4
	if keep >= len(runes) {
		return text
	}
	return string(runes[len(runes)-keep:])
}
