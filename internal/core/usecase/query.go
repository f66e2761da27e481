package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/core/retrieval"
)

type QueryUseCase struct {
	projects ports.ProjectRepository
	chunks   ports.ChunkRepository
	embedder ports.Embedder
	reranker *MMRReranker
}

func NewQueryUseCase(
	projects ports.ProjectRepository,
	chunks ports.ChunkRepository,
	embedder ports.Embedder,
	reranker *MMRReranker,
) *QueryUseCase {
	if reranker == nil {
		reranker = NewMMRReranker(DefaultMMRLambda)
	}
	return &QueryUseCase{
		projects: projects,
		chunks:   chunks,
		embedder: embedder,
		reranker: reranker,
	}
}

// Query ranks project chunks for q. Project settings supply the strategy,
// limit and min score the request leaves out. With reranking enabled the
// store is asked for limit*candidate_multiplier chunks and MMR keeps limit.
func (uc *QueryUseCase) Query(ctx context.Context, q domain.Query) (*domain.QueryResult, error) {
	project, err := loadOwnedProject(ctx, uc.projects, q.UserID, q.ProjectID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("query text is required"))
	}

	limit := project.Settings.RetrievalTopK
	if q.Limit != nil {
		limit = *q.Limit
	}
	if limit < 0 || q.Offset < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "query", fmt.Errorf("limit=%d offset=%d must be >= 0", limit, q.Offset))
	}

	strategy := project.Settings.RetrievalStrategy
	if q.Strategy != "" {
		strategy, err = domain.ParseRetrievalStrategy(string(q.Strategy))
		if err != nil {
			return nil, err
		}
	}
	resolved := retrieval.ResolveStrategy(strategy, text)

	minScore := project.Settings.RetrievalMinScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}
	if minScore < 0 || minScore > 1 {
		return nil, domain.WrapError(domain.ErrInvalidMinScore, "query", fmt.Errorf("min_score=%v must be within [0,1]", minScore))
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	result := &domain.QueryResult{Chunks: []domain.RetrievedChunk{}, ResolvedStrategy: resolved}
	if limit == 0 {
		return result, nil
	}

	rerank := project.Settings.RerankingEnabled
	fetch := limit
	if rerank {
		multiplier := project.Settings.RerankerCandidateMultiplier
		if multiplier < 1 {
			multiplier = 1
		}
		fetch = limit * multiplier
	}

	chunks, err := uc.chunks.Retrieve(ctx, domain.RetrievalQuery{
		ProjectID:       project.ID,
		Text:            text,
		Embedding:       queryVector,
		Limit:           fetch,
		Offset:          q.Offset,
		MinScore:        minScore,
		Strategy:        resolved,
		MetadataFilters: q.MetadataFilters,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve chunks: %w", err)
	}

	if rerank {
		chunks = uc.reranker.Rerank(text, queryVector, chunks, limit)
		result.Reranked = true
	}
	if chunks != nil {
		result.Chunks = chunks
	}
	return result, nil
}
