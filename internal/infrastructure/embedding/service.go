package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/infrastructure/resilience"
)

const (
	DefaultBatchSize   = 32
	DefaultConcurrency = 2
)

// BatchEmbedder is one provider call for a batch of texts.
type BatchEmbedder interface {
	Name() string
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Dimension   int
	BatchSize   int
	Concurrency int
}

// Service splits input into batches, runs them concurrently through the
// resilience executor and checks every vector against the configured dimension.
type Service struct {
	provider BatchEmbedder
	executor *resilience.Executor
	opts     Options
}

func NewService(provider BatchEmbedder, executor *resilience.Executor, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Service{
		provider: provider,
		executor: executor,
		opts:     opts,
	}
}

func (s *Service) Dimension() int {
	return s.opts.Dimension
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.Concurrency)

	for start := 0; start < len(texts); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		offset, batch := start, texts[start:end]

		group.Go(func() error {
			vectors, err := s.embedBatch(groupCtx, batch)
			if err != nil {
				return err
			}
			copy(out[offset:], vectors)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbeddingGeneration, "embed query", errors.New("empty embedding result"))
	}
	return vectors[0], nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	operation := "embedding." + s.provider.Name()

	var vectors [][]float32
	err := s.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		var callErr error
		vectors, callErr = s.provider.EmbedBatch(callCtx, batch)
		return callErr
	}, resilience.ClassifyUpstreamError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingGeneration, operation, resilience.WrapTemporaryIfNeeded(operation, err))
	}

	if err := s.validate(batch, vectors); err != nil {
		return nil, domain.WrapError(domain.ErrEmbeddingGeneration, operation, err)
	}
	return vectors, nil
}

func (s *Service) validate(batch []string, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(batch))
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return fmt.Errorf("empty vector at position %d", i)
		}
		if s.opts.Dimension > 0 && len(vector) != s.opts.Dimension {
			return fmt.Errorf("dimension mismatch at position %d: got %d, want %d", i, len(vector), s.opts.Dimension)
		}
	}
	return nil
}
