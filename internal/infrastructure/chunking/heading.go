package chunking

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/raggae/internal/infrastructure/textproc"
)

var pageMarkerOnly = regexp.MustCompile(`^\[\[PAGE:\d+\]\]$`)

// HeadingSectionChunker emits one chunk per heading section. Sections longer
// than twice ChunkSize are windowed; a section holding only its heading is
// merged into the section that follows.
type HeadingSectionChunker struct {
	ChunkSize int
	window    *FixedWindowChunker
}

func NewHeadingSectionChunker(chunkSize, overlap int) *HeadingSectionChunker {
	window := NewFixedWindowChunker(chunkSize, overlap)
	return &HeadingSectionChunker{
		ChunkSize: window.ChunkSize,
		window:    window,
	}
}

func (c *HeadingSectionChunker) Chunk(_ context.Context, text string) ([]string, error) {
	return c.Split(text), nil
}

func (c *HeadingSectionChunker) Split(text string) []string {
	sections := splitSections(text)

	out := make([]string, 0, len(sections))
	pending := ""
	for _, section := range sections {
		body := strings.TrimSpace(strings.Join(section, "\n"))
		if body == "" {
			continue
		}
		if pending != "" {
			body = pending + paragraphSeparator + body
			pending = ""
		}
		if headingOnly(section) {
			pending = body
			continue
		}
		out = append(out, c.emit(body)...)
	}
	if pending != "" {
		out = append(out, c.emit(pending)...)
	}
	return out
}

func (c *HeadingSectionChunker) emit(section string) []string {
	if utf8.RuneCountInString(section) > 2*c.ChunkSize {
		return c.window.Split(section)
	}
	return []string{section}
}

// splitSections starts a new section at every heading line. Page markers that
// directly precede a heading travel with the heading.
func splitSections(text string) [][]string {
	lines := strings.Split(text, "\n")
	sections := make([][]string, 0, 8)
	current := make([]string, 0, 16)

	for i, line := range lines {
		if textproc.IsHeadingLine(lines, i) && len(current) > 0 {
			kept, carried := splitTrailingMarkers(current)
			sections = append(sections, kept)
			current = append(carried, line)
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, current)
	}
	return sections
}

func splitTrailingMarkers(lines []string) ([]string, []string) {
	cut := len(lines)
	for cut > 0 {
		trimmed := strings.TrimSpace(lines[cut-1])
		if trimmed != "" && !pageMarkerOnly.MatchString(trimmed) {
			break
		}
		cut--
	}
	carried := make([]string, 0, len(lines)-cut)
	for _, line := range lines[cut:] {
		if strings.TrimSpace(line) != "" {
			carried = append(carried, line)
		}
	}
	return lines[:cut], carried
}

func headingOnly(section []string) bool {
	probe := append(append(make([]string, 0, len(section)+1), section...), "")
	content := 0
	for i, line := range section {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || pageMarkerOnly.MatchString(trimmed) {
			continue
		}
		if !textproc.IsHeadingLine(probe, i) {
			return false
		}
		content++
	}
	return content > 0
}
