package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

type ProjectUseCase struct {
	projects ports.ProjectRepository
	now      func() time.Time
}

func NewProjectUseCase(projects ports.ProjectRepository) *ProjectUseCase {
	return &ProjectUseCase{
		projects: projects,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *ProjectUseCase) CreateProject(ctx context.Context, userID string, input domain.ProjectInput) (*domain.Project, error) {
	if userID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "create project", fmt.Errorf("missing user id"))
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create project", fmt.Errorf("name is required"))
	}

	settings := domain.DefaultProjectSettings()
	if input.Settings != nil {
		settings = normalizeSettings(*input.Settings)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	now := uc.now()
	project := &domain.Project{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: strings.TrimSpace(input.OrganizationID),
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		Settings:       settings,
		ReindexStatus:  domain.ReindexIdle,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

func (uc *ProjectUseCase) GetProject(ctx context.Context, userID, projectID string) (*domain.Project, error) {
	return loadOwnedProject(ctx, uc.projects, userID, projectID)
}

func (uc *ProjectUseCase) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	if userID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "list projects", fmt.Errorf("missing user id"))
	}
	projects, err := uc.projects.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// UpdateProject replaces name and description and, when given, the settings.
// Reindex state is never touched here.
func (uc *ProjectUseCase) UpdateProject(ctx context.Context, userID, projectID string, input domain.ProjectInput) (*domain.Project, error) {
	project, err := loadOwnedProject(ctx, uc.projects, userID, projectID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		project.Name = name
	}
	project.Description = strings.TrimSpace(input.Description)
	if input.Settings != nil {
		settings := normalizeSettings(*input.Settings)
		if err := settings.Validate(); err != nil {
			return nil, err
		}
		project.Settings = settings
	}
	project.UpdatedAt = uc.now()

	if err := uc.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return project, nil
}

// normalizeSettings maps empty strategies to their defaults before validation.
func normalizeSettings(settings domain.ProjectSettings) domain.ProjectSettings {
	if settings.ChunkingStrategy == "" {
		settings.ChunkingStrategy = domain.ChunkingAuto
	}
	if settings.RetrievalStrategy == "" {
		settings.RetrievalStrategy = domain.RetrievalHybrid
	}
	return settings
}
