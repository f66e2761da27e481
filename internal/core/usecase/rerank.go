package usecase

import (
	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/retrieval"
)

const DefaultMMRLambda = 0.85

// MMRReranker reorders candidates by maximal marginal relevance:
// lambda*relevance - (1-lambda)*max similarity to the already selected ones.
type MMRReranker struct {
	lambda float64
}

func NewMMRReranker(lambda float64) *MMRReranker {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMRReranker{lambda: lambda}
}

func (r *MMRReranker) Lambda() float64 {
	return r.lambda
}

// Rerank selects up to topK chunks. Each returned score is the candidate's
// relevance normalized by the best candidate.
func (r *MMRReranker) Rerank(queryText string, queryEmbedding []float32, chunks []domain.RetrievedChunk, topK int) []domain.RetrievedChunk {
	if len(chunks) == 0 || topK <= 0 {
		return []domain.RetrievedChunk{}
	}
	if topK > len(chunks) {
		topK = len(chunks)
	}

	relevance := normalizedRelevance(chunks)
	tokenSets := make([]map[string]struct{}, len(chunks))
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			tokenSets[i] = retrieval.TokenSet(chunks[i].Content)
		}
	}
	similarity := func(i, j int) float64 {
		a, b := chunks[i].Embedding, chunks[j].Embedding
		if len(a) > 0 && len(b) > 0 && len(a) == len(b) {
			return retrieval.Cosine(a, b)
		}
		if tokenSets[i] == nil {
			tokenSets[i] = retrieval.TokenSet(chunks[i].Content)
		}
		if tokenSets[j] == nil {
			tokenSets[j] = retrieval.TokenSet(chunks[j].Content)
		}
		return retrieval.Jaccard(tokenSets[i], tokenSets[j])
	}

	selected := make([]int, 0, topK)
	remaining := make([]bool, len(chunks))
	for i := range remaining {
		remaining[i] = true
	}
	// maxSim[i] caches the highest similarity of i to any selected chunk.
	maxSim := make([]float64, len(chunks))

	for len(selected) < topK {
		best, bestValue := -1, 0.0
		for i := range chunks {
			if !remaining[i] {
				continue
			}
			penalty := 0.0
			if len(selected) > 0 {
				penalty = maxSim[i]
			}
			value := r.lambda*relevance[i] - (1-r.lambda)*penalty
			if best < 0 || value > bestValue {
				best, bestValue = i, value
			}
		}
		if best < 0 {
			break
		}
		selected = append(selected, best)
		remaining[best] = false
		for i := range chunks {
			if !remaining[i] {
				continue
			}
			if sim := similarity(i, best); len(selected) == 1 || sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}

	out := make([]domain.RetrievedChunk, len(selected))
	for pos, idx := range selected {
		out[pos] = chunks[idx]
		out[pos].Score = relevance[idx]
	}
	return out
}

// normalizedRelevance divides every engine score by the maximum. With no
// positive score every relevance is zero.
func normalizedRelevance(chunks []domain.RetrievedChunk) []float64 {
	maxScore := 0.0
	for _, chunk := range chunks {
		maxScore = max(maxScore, chunk.Score)
	}
	out := make([]float64, len(chunks))
	if maxScore <= 0 {
		return out
	}
	for i, chunk := range chunks {
		out[i] = max(chunk.Score, 0) / maxScore
	}
	return out
}
