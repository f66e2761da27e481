package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"unicode"

	"github.com/kirillkom/raggae/internal/core/domain"
)

var pageMarkerPattern = regexp.MustCompile(`\[\[PAGE:(\d+)\]\]\n?`)

// pagedText is chunk content with page markers removed. pages holds the page
// number of every rune in text; 0 means the rune precedes any marker.
type pagedText struct {
	text  string
	pages []int
}

func hasPageMarkers(text string) bool {
	return pageMarkerPattern.MatchString(text)
}

func stripAllPageMarkers(text string) string {
	return pageMarkerPattern.ReplaceAllString(text, "")
}

// stripPageMarkers removes the markers from chunk and assigns a page to every
// remaining rune. current is the page in effect where chunk starts; the page
// in effect at its end is returned so consecutive chunks can carry it over.
func stripPageMarkers(chunk string, current int) (pagedText, int) {
	runes := make([]rune, 0, len(chunk))
	pages := make([]int, 0, len(chunk))

	appendSegment := func(segment string) {
		for _, r := range segment {
			runes = append(runes, r)
			pages = append(pages, current)
		}
	}

	last := 0
	for _, loc := range pageMarkerPattern.FindAllStringSubmatchIndex(chunk, -1) {
		appendSegment(chunk[last:loc[0]])
		if page, err := strconv.Atoi(chunk[loc[2]:loc[3]]); err == nil {
			current = page
		}
		last = loc[1]
	}
	appendSegment(chunk[last:])

	start, end := 0, len(runes)
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return pagedText{text: string(runes[start:end]), pages: pages[start:end]}, current
}

// distinctPages returns the sorted set of known pages in runePages.
func distinctPages(runePages []int) []int {
	seen := make(map[int]struct{}, 4)
	for _, page := range runePages {
		if page > 0 {
			seen[page] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for page := range seen {
		out = append(out, page)
	}
	sort.Ints(out)
	return out
}

// applyPageMetadata sets pages/page_start/page_end when any page is known.
func applyPageMetadata(metadata map[string]any, runePages []int) {
	pages := distinctPages(runePages)
	if len(pages) == 0 {
		return
	}
	metadata[domain.MetaPages] = pages
	metadata[domain.MetaPageStart] = pages[0]
	metadata[domain.MetaPageEnd] = pages[len(pages)-1]
}

// joinedPages builds the rune page array of parts joined by separator.
// Separator runes take the page of the rune before them.
func joinedPages(parts []pagedText, separator string) []int {
	sepLen := len([]rune(separator))
	out := make([]int, 0, 256)
	for i, part := range parts {
		if i > 0 {
			page := 0
			if len(out) > 0 {
				page = out[len(out)-1]
			} else if len(part.pages) > 0 {
				page = part.pages[0]
			}
			for j := 0; j < sepLen; j++ {
				out = append(out, page)
			}
		}
		out = append(out, part.pages...)
	}
	return out
}

func spanPages(runePages []int, span [2]int) []int {
	start, end := span[0], span[1]
	if start < 0 {
		start = 0
	}
	if end > len(runePages) {
		end = len(runePages)
	}
	if start >= end {
		return nil
	}
	return runePages[start:end]
}
