package ports

import (
	"context"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// ProjectService is the inbound contract for project lifecycle.
type ProjectService interface {
	CreateProject(ctx context.Context, userID string, input domain.ProjectInput) (*domain.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (*domain.Project, error)
	ListProjects(ctx context.Context, userID string) ([]domain.Project, error)
	UpdateProject(ctx context.Context, userID, projectID string, input domain.ProjectInput) (*domain.Project, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, userID, projectID string, files []domain.UploadFile) ([]domain.UploadResult, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	ListDocuments(ctx context.Context, userID, projectID string) ([]domain.Document, error)
	GetDocument(ctx context.Context, userID, projectID, documentID string) (*domain.Document, error)
	ListChunks(ctx context.Context, userID, projectID, documentID string) ([]domain.DocumentChunk, error)
	DeleteDocument(ctx context.Context, userID, projectID, documentID string) error
}

// DocumentProcessor runs the indexing pipeline for a single document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, projectID, documentID string) error
	ReindexDocument(ctx context.Context, userID, projectID, documentID string) (*domain.Document, error)
}

// ProjectReindexer is the inbound contract for a full project reindex.
type ProjectReindexer interface {
	Reindex(ctx context.Context, userID, projectID string) (domain.ReindexResult, error)
	ResetReindex(ctx context.Context, userID, projectID string) (*domain.Project, error)
}

// QueryService is the inbound contract for project-scoped retrieval.
type QueryService interface {
	Query(ctx context.Context, query domain.Query) (*domain.QueryResult, error)
}
