package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/raggae/internal/core/domain"
)

func TestMMRPrefersNovelCandidates(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkID: "a", Score: 0.9, Embedding: []float32{1, 0}},
		{ChunkID: "a-dup", Score: 0.88, Embedding: []float32{1, 0}},
		{ChunkID: "b", Score: 0.7, Embedding: []float32{0, 1}},
	}

	out := NewMMRReranker(0.5).Rerank("q", nil, chunks, 2)
	if len(out) != 2 || out[0].ChunkID != "a" || out[1].ChunkID != "b" {
		t.Fatalf("unexpected selection %+v", out)
	}
	if out[0].Score != 1 {
		t.Fatalf("expected first score normalized to 1, got %v", out[0].Score)
	}
	if math.Abs(out[1].Score-0.7/0.9) > 1e-9 {
		t.Fatalf("expected normalized relevance, got %v", out[1].Score)
	}
}

func TestMMRLambdaOneKeepsRelevanceOrder(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkID: "a", Score: 0.9, Embedding: []float32{1, 0}},
		{ChunkID: "a-dup", Score: 0.88, Embedding: []float32{1, 0}},
		{ChunkID: "b", Score: 0.7, Embedding: []float32{0, 1}},
	}

	out := NewMMRReranker(7).Rerank("q", nil, chunks, 3)
	if out[0].ChunkID != "a" || out[1].ChunkID != "a-dup" || out[2].ChunkID != "b" {
		t.Fatalf("expected pure relevance order, got %+v", out)
	}
}

func TestMMRFallsBackToJaccardWithoutEmbeddings(t *testing.T) {
	chunks := []domain.RetrievedChunk{
		{ChunkID: "a", Score: 1.0, Content: "jwt token refresh flow"},
		{ChunkID: "a-dup", Score: 0.95, Content: "jwt token refresh flow"},
		{ChunkID: "b", Score: 0.6, Content: "database connection pool"},
	}

	out := NewMMRReranker(0.6).Rerank("jwt", nil, chunks, 2)
	if out[1].ChunkID != "b" {
		t.Fatalf("expected lexical duplicate to be demoted, got %+v", out)
	}
}

func TestMMRKeepsLexicalMatchAheadOfZeroScoredChunk(t *testing.T) {
	// fulltext weighting: the second chunk shares no query terms but sits
	// right next to the query in embedding space.
	chunks := []domain.RetrievedChunk{
		{ChunkID: "lexical", Score: 0.5, Content: "token expiry is one hour", Embedding: []float32{0.6, 0.8}},
		{ChunkID: "unrelated", Score: 0, Content: "office parking rules", Embedding: []float32{1, 0}},
	}

	out := NewMMRReranker(DefaultMMRLambda).Rerank(`"token" expiry`, []float32{1, 0}, chunks, 2)
	if len(out) != 2 || out[0].ChunkID != "lexical" {
		t.Fatalf("expected lexical match first, got %+v", out)
	}
	if out[0].Score != 1 || out[1].Score != 0 {
		t.Fatalf("expected relevance [1 0], got [%v %v]", out[0].Score, out[1].Score)
	}
}

func TestMMRAllZeroRelevance(t *testing.T) {
	chunks := []domain.RetrievedChunk{{ChunkID: "a"}, {ChunkID: "b"}}

	out := NewMMRReranker(DefaultMMRLambda).Rerank("q", nil, chunks, 5)
	if len(out) != 2 {
		t.Fatalf("expected every candidate returned, got %d", len(out))
	}
	for _, chunk := range out {
		if chunk.Score != 0 {
			t.Fatalf("expected zero relevance, got %v", chunk.Score)
		}
	}
}

func TestMMRClampsLambda(t *testing.T) {
	if got := NewMMRReranker(-1).Lambda(); got != 0 {
		t.Fatalf("expected lambda clamped to 0, got %v", got)
	}
	if got := NewMMRReranker(1.5).Lambda(); got != 1 {
		t.Fatalf("expected lambda clamped to 1, got %v", got)
	}
	if out := NewMMRReranker(0.5).Rerank("q", nil, nil, 3); len(out) != 0 {
		t.Fatalf("expected empty result for no candidates")
	}
}
