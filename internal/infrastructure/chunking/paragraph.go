package chunking

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/raggae/internal/infrastructure/textproc"
)

const paragraphSeparator = "\n\n"

// ParagraphChunker merges adjacent paragraphs while they fit in ChunkSize.
// With ContextChars > 0 every chunk after the first is prefixed by the tail
// of the previous one.
type ParagraphChunker struct {
	ChunkSize    int
	ContextChars int
	window       *FixedWindowChunker
}

func NewParagraphChunker(chunkSize, overlap, contextChars int) *ParagraphChunker {
	window := NewFixedWindowChunker(chunkSize, overlap)
	if contextChars < 0 {
		contextChars = 0
	}
	return &ParagraphChunker{
		ChunkSize:    window.ChunkSize,
		ContextChars: contextChars,
		window:       window,
	}
}

func (c *ParagraphChunker) Chunk(_ context.Context, text string) ([]string, error) {
	return c.Split(text), nil
}

func (c *ParagraphChunker) Split(text string) []string {
	base := c.merge(textproc.SplitParagraphs(text))
	if c.ContextChars == 0 || len(base) < 2 {
		return base
	}

	out := make([]string, len(base))
	out[0] = base[0]
	for i := 1; i < len(base); i++ {
		prefix := strings.TrimSpace(tailRunes(base[i-1], c.ContextChars))
		if prefix == "" {
			out[i] = base[i]
			continue
		}
		out[i] = prefix + paragraphSeparator + base[i]
	}
	return out
}

func (c *ParagraphChunker) merge(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			out = append(out, current.String())
		}
		current.Reset()
		currentLen = 0
	}

	for _, p := range paragraphs {
		pLen := utf8.RuneCountInString(p)
		if pLen > c.ChunkSize {
			flush()
			out = append(out, c.window.Split(p)...)
			continue
		}
		if currentLen > 0 && currentLen+len(paragraphSeparator)+pLen > c.ChunkSize {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(paragraphSeparator)
			currentLen += len(paragraphSeparator)
		}
		current.WriteString(p)
		currentLen += pLen
	}
	flush()
	return out
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
