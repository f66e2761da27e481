package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultHashingDimension = 384

// HashingProvider is an offline embedder: tokens and token bigrams are
// feature-hashed into a fixed number of signed buckets and L2-normalized.
// Identical text always yields the identical vector.
type HashingProvider struct {
	dimension int
}

func NewHashingProvider(dimension int) *HashingProvider {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingProvider{dimension: dimension}
}

func (p *HashingProvider) Name() string {
	return "hashing"
}

func (p *HashingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.encode(text)
	}
	return out, nil
}

func (p *HashingProvider) encode(text string) []float32 {
	vector := make([]float64, p.dimension)
	tokens := tokenizeAlphaNum(text)
	for i, token := range tokens {
		p.add(vector, token, 1.0)
		if i > 0 {
			p.add(vector, tokens[i-1]+" "+token, 0.5)
		}
	}

	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	out := make([]float32, p.dimension)
	if norm == 0 {
		// empty input maps to a fixed unit vector
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vector {
		out[i] = float32(v / norm)
	}
	return out
}

func (p *HashingProvider) add(vector []float64, feature string, weight float64) {
	sum := hashToken(feature)
	idx := int(sum % uint32(p.dimension))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vector[idx] += weight
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
