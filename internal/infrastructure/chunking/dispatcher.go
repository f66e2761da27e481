package chunking

import (
	"context"
	"fmt"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// TextChunker is a single chunking strategy.
type TextChunker interface {
	Chunk(ctx context.Context, text string) ([]string, error)
}

type Dispatcher struct {
	strategies map[domain.ChunkingStrategy]TextChunker
}

func NewDispatcher(fixed, paragraph, heading, semantic TextChunker) *Dispatcher {
	strategies := make(map[domain.ChunkingStrategy]TextChunker, 4)
	register := func(strategy domain.ChunkingStrategy, chunker TextChunker) {
		if chunker != nil {
			strategies[strategy] = chunker
		}
	}
	register(domain.ChunkingFixedWindow, fixed)
	register(domain.ChunkingParagraph, paragraph)
	register(domain.ChunkingHeadingSection, heading)
	register(domain.ChunkingSemantic, semantic)
	return &Dispatcher{strategies: strategies}
}

// Chunk runs the chunker registered for strategy. Auto must be resolved by
// the caller before dispatching.
func (d *Dispatcher) Chunk(ctx context.Context, text string, strategy domain.ChunkingStrategy) ([]string, error) {
	chunker, ok := d.strategies[strategy]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidChunkingStrategy, "chunk text", fmt.Errorf("no chunker for strategy %q", strategy))
	}
	chunks, err := chunker.Chunk(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chunk text with %s: %w", strategy, err)
	}
	return chunks, nil
}
