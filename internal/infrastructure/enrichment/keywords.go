package enrichment

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const DefaultMaxKeywords = 8

// FrequencyKeywordExtractor ranks words by frequency with stopwords filtered.
type FrequencyKeywordExtractor struct {
	maxKeywords  int
	tokenPattern *regexp.Regexp
	pageMarker   *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewFrequencyKeywordExtractor(maxKeywords int) *FrequencyKeywordExtractor {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	return &FrequencyKeywordExtractor{
		maxKeywords:  maxKeywords,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['\x{2019}]\p{L}+)*`),
		pageMarker:   regexp.MustCompile(`\[\[PAGE:\d+\]\]`),
		stopwords:    defaultStopwords(),
	}
}

func (e *FrequencyKeywordExtractor) ExtractKeywords(text string) ([]string, error) {
	text = e.pageMarker.ReplaceAllString(text, " ")
	freq := map[string]int{}
	for _, token := range e.tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if utf8.RuneCountInString(token) < 3 {
			continue
		}
		if _, ok := e.stopwords[token]; ok {
			continue
		}
		freq[token]++
	}

	keywords := make([]string, 0, len(freq))
	for token := range freq {
		keywords = append(keywords, token)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > e.maxKeywords {
		keywords = keywords[:e.maxKeywords]
	}
	return keywords, nil
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"not", "no", "has", "have", "had", "its", "our", "your", "their", "they", "them", "there", "here", "what", "which", "who", "when", "where", "how", "all", "any", "each", "also", "may", "more", "most", "other", "some", "only", "would", "could", "you", "she", "his", "her", "we",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
