package extractor

import (
	"strings"
	"unicode/utf8"
)

// decodePlainText decodes UTF-8 and replaces invalid sequences instead of failing.
func decodePlainText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}
