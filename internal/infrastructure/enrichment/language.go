package enrichment

import (
	"errors"
	"strings"

	"github.com/abadojack/whatlanggo"
)

const (
	languageSampleRunes   = 4000
	minLanguageConfidence = 0.2
)

type LanguageDetector struct{}

func NewLanguageDetector() *LanguageDetector {
	return &LanguageDetector{}
}

// DetectLanguage returns the ISO 639-1 code of the dominant language.
func (d *LanguageDetector) DetectLanguage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("detect language: empty text")
	}
	if runes := []rune(text); len(runes) > languageSampleRunes {
		text = string(runes[:languageSampleRunes])
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || info.Confidence < minLanguageConfidence {
		return "", errors.New("detect language: no confident match")
	}
	return code, nil
}
