package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrProjectNotFound  = errors.New("project not found")
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	ErrDocumentExtraction               = errors.New("document extraction failed")
	ErrEmbeddingGeneration              = errors.New("embedding generation failed")
	ErrLLMGeneration                    = errors.New("llm generation failed")
	ErrInvalidDocumentStatusTransition  = errors.New("invalid document status transition")
	ErrProjectReindexInProgress         = errors.New("project reindex already in progress")
	ErrInvalidRetrievalStrategy         = errors.New("invalid retrieval strategy")
	ErrInvalidChunkingStrategy          = errors.New("invalid chunking strategy")
	ErrInvalidTopK                      = errors.New("invalid retrieval top k")
	ErrInvalidMinScore                  = errors.New("invalid retrieval min score")
	ErrInvalidRerankerCandidateMultiple = errors.New("invalid reranker candidate multiplier")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// IsProcessingFailure reports whether err came out of extraction or embedding,
// the two failure kinds that mark a document as errored instead of aborting a run.
func IsProcessingFailure(err error) bool {
	return IsKind(err, ErrDocumentExtraction) ||
		IsKind(err, ErrEmbeddingGeneration) ||
		IsKind(err, ErrFileNotFound)
}
