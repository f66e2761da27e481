package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

type IngestDocumentUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	blobs     ports.BlobStorage
	processor *ProcessDocumentUseCase
	queue     ports.MessageQueue
	mode      domain.ProcessingMode
	now       func() time.Time
}

// NewIngestDocumentUseCase builds the upload path. queue is only used in
// async mode and may be nil otherwise.
func NewIngestDocumentUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	blobs ports.BlobStorage,
	processor *ProcessDocumentUseCase,
	queue ports.MessageQueue,
	mode domain.ProcessingMode,
) *IngestDocumentUseCase {
	if mode == "" {
		mode = domain.ProcessingSync
	}
	return &IngestDocumentUseCase{
		projects:  projects,
		documents: documents,
		blobs:     blobs,
		processor: processor,
		queue:     queue,
		mode:      mode,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores every file, creates its document and processes it according
// to the processing mode. Per-file processing failures are reported in the
// results; storage and persistence failures abort the request.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	userID, projectID string,
	files []domain.UploadFile,
) ([]domain.UploadResult, error) {
	if len(files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", fmt.Errorf("no files"))
	}
	project, err := loadOwnedProject(ctx, uc.projects, userID, projectID)
	if err != nil {
		return nil, err
	}

	results := make([]domain.UploadResult, 0, len(files))
	for _, file := range files {
		result, err := uc.uploadOne(ctx, userID, project, file)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (uc *IngestDocumentUseCase) uploadOne(
	ctx context.Context,
	userID string,
	project *domain.Project,
	file domain.UploadFile,
) (domain.UploadResult, error) {
	result := domain.UploadResult{FileName: file.FileName}
	if strings.TrimSpace(file.FileName) == "" || len(file.Content) == 0 {
		result.ErrorCode = domain.UploadErrorInvalidFile
		result.Error = "file name and content are required"
		return result, nil
	}

	id := uuid.NewString()
	storageKey := documentStorageKey(project.ID, id, file.FileName)
	now := uc.now()

	if err := uc.blobs.Upload(ctx, storageKey, file.Content, file.ContentType); err != nil {
		return result, fmt.Errorf("save to blob storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		ProjectID:   project.ID,
		UserID:      userID,
		FileName:    file.FileName,
		ContentType: file.ContentType,
		FileSize:    int64(len(file.Content)),
		StorageKey:  storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.documents.Create(ctx, doc); err != nil {
		return result, fmt.Errorf("create document metadata: %w", err)
	}
	result.Document = doc

	switch uc.mode {
	case domain.ProcessingOff:
		return result, nil
	case domain.ProcessingAsync:
		if uc.queue == nil {
			return result, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("async processing requires a queue"))
		}
		if err := uc.queue.PublishDocumentUploaded(ctx, ports.DocumentJob{ProjectID: project.ID, DocumentID: doc.ID}); err != nil {
			return result, fmt.Errorf("publish processing job: %w", err)
		}
		return result, nil
	}

	processed, err := uc.processor.process(ctx, project, doc)
	if processed != nil {
		result.Document = processed
	}
	if err != nil {
		if !domain.IsProcessingFailure(err) {
			return result, err
		}
		slog.Warn("upload_processing_failed", "document_id", doc.ID, "project_id", project.ID, "error", err)
		result.ErrorCode = domain.UploadErrorProcessingFailed
		result.Error = err.Error()
	}
	return result, nil
}

func documentStorageKey(projectID, documentID, fileName string) string {
	return fmt.Sprintf("projects/%s/documents/%s-%s", projectID, documentID, sanitizeFilename(fileName))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
