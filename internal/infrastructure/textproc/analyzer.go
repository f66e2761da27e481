package textproc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/raggae/internal/core/domain"
)

const maxHeadingRunes = 80

var (
	markdownHeading = regexp.MustCompile(`^#{1,6}\s+\S`)
	pageMarkerLine  = regexp.MustCompile(`(?m)^\[\[PAGE:\d+\]\]$`)
	paragraphBreak  = regexp.MustCompile(`\n\s*\n`)
)

type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Analyze(text string) domain.TextStructure {
	text = pageMarkerLine.ReplaceAllString(text, "")

	paragraphs := SplitParagraphs(text)
	total := 0
	for _, p := range paragraphs {
		total += utf8.RuneCountInString(p)
	}
	avg := 0.0
	if len(paragraphs) > 0 {
		avg = float64(total) / float64(len(paragraphs))
	}

	return domain.TextStructure{
		HasHeadings:            HasHeadings(text),
		ParagraphCount:         len(paragraphs),
		AverageParagraphLength: avg,
	}
}

// SplitParagraphs returns the trimmed, non-empty blocks separated by blank lines.
func SplitParagraphs(text string) []string {
	blocks := paragraphBreak.Split(text, -1)
	out := make([]string, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

func HasHeadings(text string) bool {
	lines := strings.Split(text, "\n")
	for i := range lines {
		if IsHeadingLine(lines, i) {
			return true
		}
	}
	return false
}

// IsHeadingLine reports a markdown heading, or a short all-caps or title-case
// line followed by a blank line.
func IsHeadingLine(lines []string, i int) bool {
	line := strings.TrimSpace(lines[i])
	if line == "" {
		return false
	}
	if markdownHeading.MatchString(line) {
		return true
	}
	if utf8.RuneCountInString(line) >= maxHeadingRunes {
		return false
	}
	if i+1 >= len(lines) || strings.TrimSpace(lines[i+1]) != "" {
		return false
	}
	if strings.ContainsAny(line[len(line)-1:], ".!?:;,") {
		return false
	}
	if pageMarkerLine.MatchString(line) {
		return false
	}
	return isAllCaps(line) || isTitleCase(line)
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

func isTitleCase(line string) bool {
	words := strings.Fields(line)
	if len(words) == 0 {
		return false
	}
	letterWords := 0
	for _, word := range words {
		first, _ := utf8.DecodeRuneInString(word)
		if !unicode.IsLetter(first) {
			continue
		}
		if !unicode.IsUpper(first) {
			return false
		}
		letterWords++
	}
	return letterWords > 0
}
