package chunking

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/core/retrieval"
)

const DefaultSemanticThreshold = 0.65

// SemanticChunker groups consecutive sentences until their embeddings drift
// below Threshold or the group would exceed ChunkSize.
type SemanticChunker struct {
	ChunkSize int
	Threshold float64
	embedder  ports.Embedder
	window    *FixedWindowChunker
}

func NewSemanticChunker(embedder ports.Embedder, chunkSize, overlap int, threshold float64) *SemanticChunker {
	window := NewFixedWindowChunker(chunkSize, overlap)
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSemanticThreshold
	}
	return &SemanticChunker{
		ChunkSize: window.ChunkSize,
		Threshold: threshold,
		embedder:  embedder,
		window:    window,
	}
}

func (c *SemanticChunker) Chunk(ctx context.Context, text string) ([]string, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	vectors, err := c.embedder.Embed(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("embed sentences: vectors/sentences mismatch: %d/%d", len(vectors), len(sentences))
	}

	out := make([]string, 0, len(sentences)/4+1)
	group := make([]string, 0, 8)
	groupLen := 0
	flush := func() {
		if len(group) == 0 {
			return
		}
		out = append(out, c.finish(strings.Join(group, " "))...)
		group = group[:0]
		groupLen = 0
	}

	for i, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)
		if i > 0 && len(group) > 0 {
			similar := retrieval.Cosine(vectors[i-1], vectors[i]) >= c.Threshold
			fits := groupLen+1+sentenceLen <= c.ChunkSize
			if !similar || !fits {
				flush()
			}
		}
		group = append(group, sentence)
		if groupLen > 0 {
			groupLen++
		}
		groupLen += sentenceLen
	}
	flush()
	return out, nil
}

func (c *SemanticChunker) finish(chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return nil
	}
	if utf8.RuneCountInString(chunk) > c.ChunkSize {
		return c.window.Split(chunk)
	}
	return []string{chunk}
}

// SplitSentences breaks text after sentence punctuation followed by whitespace
// and at every newline run. A page marker on its own joins the next sentence.
func SplitSentences(text string) []string {
	raw := make([]string, 0, 16)
	runes := []rune(text)
	start := 0
	emit := func(end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			raw = append(raw, s)
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\n':
			emit(i)
			for i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			start = i + 1
		case (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]):
			emit(i + 1)
			start = i + 1
		}
	}
	if start < len(runes) {
		emit(len(runes))
	}

	out := make([]string, 0, len(raw))
	pending := ""
	for _, s := range raw {
		if pageMarkerOnly.MatchString(s) {
			if pending != "" {
				pending += "\n"
			}
			pending += s
			continue
		}
		if pending != "" {
			s = pending + "\n" + s
			pending = ""
		}
		out = append(out, s)
	}
	if pending != "" {
		out = append(out, pending)
	}
	return out
}
