package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

// DocumentQueryUseCase serves the document read model and deletion.
type DocumentQueryUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	chunks    ports.ChunkRepository
	blobs     ports.BlobStorage
}

func NewDocumentQueryUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	chunks ports.ChunkRepository,
	blobs ports.BlobStorage,
) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{
		projects:  projects,
		documents: documents,
		chunks:    chunks,
		blobs:     blobs,
	}
}

func (uc *DocumentQueryUseCase) ListDocuments(ctx context.Context, userID, projectID string) ([]domain.Document, error) {
	if _, err := loadOwnedProject(ctx, uc.projects, userID, projectID); err != nil {
		return nil, err
	}
	docs, err := uc.documents.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (uc *DocumentQueryUseCase) GetDocument(ctx context.Context, userID, projectID, documentID string) (*domain.Document, error) {
	if _, err := loadOwnedProject(ctx, uc.projects, userID, projectID); err != nil {
		return nil, err
	}
	return loadProjectDocument(ctx, uc.documents, projectID, documentID)
}

func (uc *DocumentQueryUseCase) ListChunks(ctx context.Context, userID, projectID, documentID string) ([]domain.DocumentChunk, error) {
	if _, err := uc.GetDocument(ctx, userID, projectID, documentID); err != nil {
		return nil, err
	}
	chunks, err := uc.chunks.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return chunks, nil
}

// DeleteDocument removes chunks, the document row and then the blob.
// A blob that cannot be removed is logged and left behind.
func (uc *DocumentQueryUseCase) DeleteDocument(ctx context.Context, userID, projectID, documentID string) error {
	doc, err := uc.GetDocument(ctx, userID, projectID, documentID)
	if err != nil {
		return err
	}
	if err := uc.chunks.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	if err := uc.documents.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if doc.StorageKey != "" {
		if err := uc.blobs.Delete(ctx, doc.StorageKey); err != nil && !domain.IsKind(err, domain.ErrFileNotFound) {
			slog.Warn("document_blob_delete_failed", "document_id", doc.ID, "storage_key", doc.StorageKey, "error", err)
		}
	}
	return nil
}
