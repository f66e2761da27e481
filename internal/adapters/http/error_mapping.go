package httpadapter

import (
	"net/http"

	"github.com/kirillkom/raggae/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrInvalidRetrievalStrategy),
		domain.IsKind(err, domain.ErrInvalidChunkingStrategy),
		domain.IsKind(err, domain.ErrInvalidTopK),
		domain.IsKind(err, domain.ErrInvalidMinScore),
		domain.IsKind(err, domain.ErrInvalidRerankerCandidateMultiple):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrProjectNotFound),
		domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrProjectReindexInProgress),
		domain.IsKind(err, domain.ErrInvalidDocumentStatusTransition):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsProcessingFailure(err),
		domain.IsKind(err, domain.ErrLLMGeneration):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
