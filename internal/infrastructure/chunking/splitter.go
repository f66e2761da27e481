package chunking

import (
	"context"
	"strings"
	"unicode"
)

// FixedWindowChunker cuts rune windows of ChunkSize with Overlap runes shared
// between neighbours. A window end moves back to a word boundary when one
// exists in the last tenth of the window.
type FixedWindowChunker struct {
	ChunkSize int
	Overlap   int
}

func NewFixedWindowChunker(chunkSize, overlap int) *FixedWindowChunker {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &FixedWindowChunker{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *FixedWindowChunker) Chunk(_ context.Context, text string) ([]string, error) {
	return s.Split(text), nil
}

func (s *FixedWindowChunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.snapToWordBoundary(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *FixedWindowChunker) snapToWordBoundary(runes []rune, start, end int) int {
	tenth := s.ChunkSize / 10
	if tenth < 1 {
		tenth = 1
	}
	limit := end - tenth
	if limit <= start {
		limit = start + 1
	}
	for k := end; k >= limit; k-- {
		if unicode.IsSpace(runes[k]) || unicode.IsSpace(runes[k-1]) {
			return k
		}
	}
	return end
}
