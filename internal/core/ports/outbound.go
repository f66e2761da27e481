package ports

import (
	"context"
	"time"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// ProjectRepository persists projects and their reindex state.
type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	UpdateReindexState(ctx context.Context, id string, status domain.ReindexStatus, progress, total int) error
}

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id string) error
}

// ChunkRepository stores document chunks and ranks them for a query.
type ChunkRepository interface {
	SaveMany(ctx context.Context, chunks []domain.DocumentChunk) error
	DeleteByDocumentID(ctx context.Context, documentID string) error
	FindByDocumentID(ctx context.Context, documentID string) ([]domain.DocumentChunk, error)
	Retrieve(ctx context.Context, query domain.RetrievalQuery) ([]domain.RetrievedChunk, error)
}

// BlobStorage stores uploaded source files.
type BlobStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DocumentJob is the payload of an asynchronous processing request.
type DocumentJob struct {
	ProjectID  string    `json:"project_id"`
	DocumentID string    `json:"document_id"`
	EnqueuedAt time.Time `json:"enqueued_at,omitempty"`
}

// MessageQueue publishes/consumes document processing jobs.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, job DocumentJob) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, DocumentJob) error) error
}

// TextExtractor decodes raw file bytes into text with page markers.
type TextExtractor interface {
	Extract(ctx context.Context, fileName string, content []byte, contentType string) (string, error)
}

type TextSanitizer interface {
	Sanitize(text string) string
}

type StructureAnalyzer interface {
	Analyze(text string) domain.TextStructure
}

type StrategySelector interface {
	Select(structure domain.TextStructure) domain.ChunkingStrategy
}

// Chunker splits text with the named strategy. Page markers stay in place.
type Chunker interface {
	Chunk(ctx context.Context, text string, strategy domain.ChunkingStrategy) ([]string, error)
}

// ParentChildSplitter groups base chunks into parents with overlapping children.
type ParentChildSplitter interface {
	Split(chunks []string) []domain.ParentChunk
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// MetadataExtractor reads format-level metadata (title, authors, date) from a file.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, fileName string, content []byte) (domain.FileMetadata, error)
}

type LanguageDetector interface {
	DetectLanguage(text string) (string, error)
}

type KeywordExtractor interface {
	ExtractKeywords(text string) ([]string, error)
}

// PipelineObserver receives indexing and reindex outcomes for metrics.
type PipelineObserver interface {
	ObservePipeline(strategy domain.ChunkingStrategy, chunks int, err error)
	ObserveReindex(result domain.ReindexResult)
}
