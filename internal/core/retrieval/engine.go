// Package retrieval ranks project chunks by combining dense and lexical similarity.
// Chunk stores load candidates and delegate scoring, filtering and paging here.
package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kirillkom/raggae/internal/core/domain"
)

const (
	DefaultVectorWeight   = 0.6
	DefaultFulltextWeight = 0.4
)

type Weights struct {
	Vector   float64
	Fulltext float64
}

type Engine struct {
	hybrid Weights
}

// NewEngine builds an engine with the given hybrid weights. Weights are
// normalized to sum to 1; negative or all-zero input falls back to the defaults.
func NewEngine(vectorWeight, fulltextWeight float64) *Engine {
	sum := vectorWeight + fulltextWeight
	if vectorWeight < 0 || fulltextWeight < 0 || sum <= 0 {
		vectorWeight, fulltextWeight, sum = DefaultVectorWeight, DefaultFulltextWeight, 1
	}
	return &Engine{hybrid: Weights{Vector: vectorWeight / sum, Fulltext: fulltextWeight / sum}}
}

func (e *Engine) WeightsFor(strategy domain.RetrievalStrategy) Weights {
	switch strategy {
	case domain.RetrievalVector:
		return Weights{Vector: 1}
	case domain.RetrievalFulltext:
		return Weights{Fulltext: 1}
	default:
		return e.hybrid
	}
}

// Rank scores candidates for the query and returns the requested page along
// with the strategy actually applied.
func (e *Engine) Rank(query domain.RetrievalQuery, candidates []domain.RetrievedChunk) ([]domain.RetrievedChunk, domain.RetrievalStrategy) {
	strategy := ResolveStrategy(query.Strategy, query.Text)
	weights := e.WeightsFor(strategy)
	queryTerms := TokenSet(query.Text)

	scored := make([]domain.RetrievedChunk, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Level == domain.ChunkLevelParent {
			continue
		}
		if !MatchesFilters(candidate.Metadata, query.MetadataFilters) {
			continue
		}

		candidate.VectorScore = clamp01(Cosine(query.Embedding, candidate.Embedding))
		candidate.FulltextScore = FulltextScore(queryTerms, TokenSet(candidate.Content))
		candidate.Score = weights.Vector*candidate.VectorScore + weights.Fulltext*candidate.FulltextScore
		if candidate.Score < query.MinScore {
			continue
		}
		scored = append(scored, candidate)
	}

	SortByScore(scored)
	return Page(scored, query.Offset, query.Limit), strategy
}

// SortByScore orders by score descending, then document id and chunk index ascending.
func SortByScore(chunks []domain.RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].ChunkIndex < chunks[j].ChunkIndex
	})
}

func Page(chunks []domain.RetrievedChunk, offset, limit int) []domain.RetrievedChunk {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(chunks) {
		return []domain.RetrievedChunk{}
	}
	end := offset + limit
	if end > len(chunks) {
		end = len(chunks)
	}
	return chunks[offset:end]
}

// ResolveStrategy keeps an explicit strategy and resolves auto from the query text:
// quoted or short technical queries go lexical, everything else hybrid.
func ResolveStrategy(strategy domain.RetrievalStrategy, queryText string) domain.RetrievalStrategy {
	if strategy != "" && strategy != domain.RetrievalAuto {
		return strategy
	}
	if strings.Contains(queryText, `"`) {
		return domain.RetrievalFulltext
	}
	if IsShortTechnical(queryText) {
		return domain.RetrievalFulltext
	}
	return domain.RetrievalHybrid
}

// IsShortTechnical reports queries of at most three tokens that contain an
// identifier-like token (underscore, hyphen or an uppercase acronym).
func IsShortTechnical(queryText string) bool {
	tokens := strings.Fields(queryText)
	if len(tokens) == 0 || len(tokens) > 3 {
		return false
	}
	for _, token := range tokens {
		if strings.ContainsAny(token, "_-") {
			return true
		}
		if isUpperToken(token) {
			return true
		}
	}
	return false
}

func isUpperToken(token string) bool {
	letters := 0
	for _, r := range token {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 1
}

func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Tokenize lowercases and splits on whitespace, trimming punctuation at token edges.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if token != "" {
			out = append(out, token)
		}
	}
	return out
}

func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// FulltextScore is the share of query terms present in the chunk.
func FulltextScore(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for token := range a {
		if _, ok := b[token]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
