package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

// ProcessDocumentUseCase drives one document through the indexing pipeline
// and its status machine: processing, then indexed or error.
type ProcessDocumentUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	blobs     ports.BlobStorage
	pipeline  *IndexingPipeline
	now       func() time.Time
}

func NewProcessDocumentUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	blobs ports.BlobStorage,
	pipeline *IndexingPipeline,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		projects:  projects,
		documents: documents,
		blobs:     blobs,
		pipeline:  pipeline,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessByID is the entry point of the asynchronous worker.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, projectID, documentID string) error {
	project, err := uc.projects.GetByID(ctx, projectID)
	if err != nil {
		return fmt.Errorf("fetch project by id: %w", err)
	}
	doc, err := loadProjectDocument(ctx, uc.documents, projectID, documentID)
	if err != nil {
		return err
	}
	_, err = uc.process(ctx, project, doc)
	return err
}

// ReindexDocument reruns the pipeline for one document of an owned project.
// A processing failure is returned together with the errored document.
func (uc *ProcessDocumentUseCase) ReindexDocument(ctx context.Context, userID, projectID, documentID string) (*domain.Document, error) {
	project, err := loadOwnedProject(ctx, uc.projects, userID, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := loadProjectDocument(ctx, uc.documents, projectID, documentID)
	if err != nil {
		return nil, err
	}
	return uc.process(ctx, project, doc)
}

func (uc *ProcessDocumentUseCase) process(ctx context.Context, project *domain.Project, doc *domain.Document) (*domain.Document, error) {
	if doc.Status != domain.StatusProcessing {
		if err := doc.MarkProcessing(uc.now()); err != nil {
			return nil, err
		}
		if err := uc.documents.Update(ctx, doc); err != nil {
			return nil, fmt.Errorf("set status=processing: %w", err)
		}
	}

	indexed, err := uc.runPipeline(ctx, project, doc)
	if err != nil {
		if failErr := uc.markFailed(ctx, doc, err); failErr != nil {
			return doc, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return doc, err
	}

	if err := indexed.MarkIndexed(uc.now()); err != nil {
		return nil, err
	}
	if err := uc.documents.Update(ctx, indexed); err != nil {
		return nil, fmt.Errorf("set status=indexed: %w", err)
	}
	return indexed, nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, project *domain.Project, doc *domain.Document) (*domain.Document, error) {
	content, _, err := uc.blobs.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("download document file: %w", err)
	}
	return uc.pipeline.Run(ctx, doc, project, content)
}

// markFailed persists the error status on a fresh context when ctx is gone,
// so a cancelled run does not leave the document in processing.
func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, doc *domain.Document, processErr error) error {
	if processErr == nil {
		return nil
	}
	if err := doc.MarkError(processErr.Error(), uc.now()); err != nil {
		return err
	}
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	return uc.documents.Update(ctx, doc)
}
