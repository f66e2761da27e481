package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/raggae/internal/core/domain"
)

const (
	DefaultParentSize   = 2000
	DefaultChildSize    = 500
	DefaultChildOverlap = 50
)

// ParentChildSplitter packs base chunks into parents of at most ParentSize
// runes and slides a ChildSize window with exactly ChildOverlap shared runes
// over each parent.
type ParentChildSplitter struct {
	ParentSize   int
	ChildSize    int
	ChildOverlap int
}

func NewParentChildSplitter(parentSize, childSize, childOverlap int) *ParentChildSplitter {
	if parentSize <= 0 {
		parentSize = DefaultParentSize
	}
	if childSize <= 0 {
		childSize = DefaultChildSize
	}
	if childOverlap < 0 {
		childOverlap = 0
	}
	if childOverlap >= childSize {
		childOverlap = childSize / 10
	}
	return &ParentChildSplitter{
		ParentSize:   parentSize,
		ChildSize:    childSize,
		ChildOverlap: childOverlap,
	}
}

func (s *ParentChildSplitter) Split(chunks []string) []domain.ParentChunk {
	out := make([]domain.ParentChunk, 0, len(chunks)/2+1)
	for _, parts := range s.pack(chunks) {
		texts := make([]string, len(parts))
		for i, idx := range parts {
			texts[i] = chunks[idx]
		}
		text := strings.Join(texts, domain.ParentPartSeparator)
		children, spans := s.children(text)
		out = append(out, domain.ParentChunk{
			Text:       text,
			Children:   children,
			ChildSpans: spans,
			Parts:      parts,
		})
	}
	return out
}

func (s *ParentChildSplitter) pack(chunks []string) [][]int {
	groups := make([][]int, 0, len(chunks)/2+1)
	current := make([]int, 0, 4)
	currentLen := 0
	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
		}
		current = make([]int, 0, 4)
		currentLen = 0
	}

	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		chunkLen := utf8.RuneCountInString(chunk)
		if chunkLen > s.ParentSize {
			flush()
			current = append(current, i)
			flush()
			continue
		}
		if len(current) > 0 && currentLen+len(domain.ParentPartSeparator)+chunkLen > s.ParentSize {
			flush()
		}
		if len(current) > 0 {
			currentLen += len(domain.ParentPartSeparator)
		}
		current = append(current, i)
		currentLen += chunkLen
	}
	flush()
	return groups
}

func (s *ParentChildSplitter) children(text string) ([]string, [][2]int) {
	runes := []rune(text)
	step := s.ChildSize - s.ChildOverlap
	children := make([]string, 0, len(runes)/step+1)
	spans := make([][2]int, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + s.ChildSize
		if end > len(runes) {
			end = len(runes)
		}
		child := string(runes[start:end])
		if strings.TrimSpace(child) != "" {
			children = append(children, child)
			spans = append(spans, [2]int{start, end})
		}
		if end == len(runes) {
			break
		}
	}
	return children, spans
}
