package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

// ProjectReindexUseCase reruns the pipeline over every document of a project,
// one document at a time, persisting progress after each.
type ProjectReindexUseCase struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	processor *ProcessDocumentUseCase
	observer  ports.PipelineObserver

	mu      sync.Mutex
	running map[string]struct{}
}

func NewProjectReindexUseCase(
	projects ports.ProjectRepository,
	documents ports.DocumentRepository,
	processor *ProcessDocumentUseCase,
	observer ports.PipelineObserver,
) *ProjectReindexUseCase {
	return &ProjectReindexUseCase{
		projects:  projects,
		documents: documents,
		processor: processor,
		observer:  observer,
		running:   make(map[string]struct{}),
	}
}

func (uc *ProjectReindexUseCase) Reindex(ctx context.Context, userID, projectID string) (domain.ReindexResult, error) {
	project, err := loadOwnedProject(ctx, uc.projects, userID, projectID)
	if err != nil {
		return domain.ReindexResult{}, err
	}
	if !uc.acquire(project.ID) {
		return domain.ReindexResult{}, domain.WrapError(domain.ErrProjectReindexInProgress, "reindex project", fmt.Errorf("project=%s", project.ID))
	}
	defer uc.release(project.ID)

	docs, err := uc.documents.ListByProject(ctx, project.ID)
	if err != nil {
		return domain.ReindexResult{}, fmt.Errorf("list project documents: %w", err)
	}
	if err := project.StartReindex(len(docs)); err != nil {
		return domain.ReindexResult{}, err
	}
	if err := uc.persistState(ctx, project); err != nil {
		return domain.ReindexResult{}, err
	}
	slog.Info("reindex_started", "project_id", project.ID, "total", len(docs))

	result := domain.ReindexResult{Total: len(docs)}
	for i := range docs {
		doc := docs[i]
		if _, err := uc.processor.process(ctx, project, &doc); err != nil {
			result.Failed++
			slog.Warn("reindex_document_failed", "project_id", project.ID, "document_id", doc.ID, "error", err)
		} else {
			result.Indexed++
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("reindex project %s: %w", project.ID, ctxErr)
		}
		project.AdvanceReindex()
		if err := uc.persistState(ctx, project); err != nil {
			return result, err
		}
	}

	project.FinishReindex(result.Indexed)
	if err := uc.persistState(ctx, project); err != nil {
		return result, err
	}
	if uc.observer != nil {
		uc.observer.ObserveReindex(result)
	}
	slog.Info("reindex_finished",
		"project_id", project.ID,
		"status", string(project.ReindexStatus),
		"total", result.Total,
		"indexed", result.Indexed,
		"failed", result.Failed,
	)
	return result, nil
}

// ResetReindex returns a project stuck in in_progress (for example after a
// crash) to idle. A run active in this process cannot be reset.
func (uc *ProjectReindexUseCase) ResetReindex(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	project, err := loadOwnedProject(ctx, uc.projects, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !uc.acquire(project.ID) {
		return nil, domain.WrapError(domain.ErrProjectReindexInProgress, "reset reindex", fmt.Errorf("project=%s", project.ID))
	}
	defer uc.release(project.ID)

	project.ResetReindex()
	if err := uc.persistState(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (uc *ProjectReindexUseCase) persistState(ctx context.Context, project *domain.Project) error {
	err := uc.projects.UpdateReindexState(ctx, project.ID, project.ReindexStatus, project.ReindexProgress, project.ReindexTotal)
	if err != nil {
		return fmt.Errorf("persist reindex state: %w", err)
	}
	return nil
}

func (uc *ProjectReindexUseCase) acquire(projectID string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, busy := uc.running[projectID]; busy {
		return false
	}
	uc.running[projectID] = struct{}{}
	return true
}

func (uc *ProjectReindexUseCase) release(projectID string) {
	uc.mu.Lock()
	delete(uc.running, projectID)
	uc.mu.Unlock()
}
