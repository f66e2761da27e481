package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

var excessBlankLines = regexp.MustCompile(`\n{4,}`)

type Sanitizer struct{}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize strips BOMs and C0 control characters (except tab and newline),
// normalizes line endings, trims trailing line whitespace and keeps at most
// two consecutive blank lines. Applying it twice yields the same text.
func (s *Sanitizer) Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\ufeff", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' {
			return r
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	text = strings.Join(lines, "\n")
	text = excessBlankLines.ReplaceAllString(text, "\n\n\n")
	return strings.Trim(text, "\n")
}
