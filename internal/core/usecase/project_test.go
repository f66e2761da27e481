package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/infrastructure/repository/memory"
)

func TestCreateProjectDefaults(t *testing.T) {
	uc := NewProjectUseCase(memory.NewStore().Projects())

	project, err := uc.CreateProject(context.Background(), testUserID, domain.ProjectInput{Name: "  Handbook  "})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if project.ID == "" || project.Name != "Handbook" || project.UserID != testUserID {
		t.Fatalf("unexpected project %+v", project)
	}
	if project.Settings != domain.DefaultProjectSettings() || project.ReindexStatus != domain.ReindexIdle {
		t.Fatalf("expected default settings and idle reindex, got %+v", project)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	uc := NewProjectUseCase(memory.NewStore().Projects())

	if _, err := uc.CreateProject(context.Background(), "", domain.ProjectInput{Name: "x"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := uc.CreateProject(context.Background(), testUserID, domain.ProjectInput{Name: " "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	settings := domain.DefaultProjectSettings()
	settings.RetrievalTopK = 0
	if _, err := uc.CreateProject(context.Background(), testUserID, domain.ProjectInput{Name: "x", Settings: &settings}); !errors.Is(err, domain.ErrInvalidTopK) {
		t.Fatalf("expected invalid top k, got %v", err)
	}

	settings = domain.DefaultProjectSettings()
	settings.ChunkingStrategy = ""
	settings.RetrievalStrategy = ""
	project, err := uc.CreateProject(context.Background(), testUserID, domain.ProjectInput{Name: "x", Settings: &settings})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if project.Settings.ChunkingStrategy != domain.ChunkingAuto || project.Settings.RetrievalStrategy != domain.RetrievalHybrid {
		t.Fatalf("expected empty strategies normalized, got %+v", project.Settings)
	}
}

func TestUpdateProjectKeepsReindexState(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)
	if err := env.projects.UpdateReindexState(context.Background(), project.ID, domain.ReindexCompleted, 3, 3); err != nil {
		t.Fatalf("UpdateReindexState() error = %v", err)
	}
	uc := NewProjectUseCase(env.projects)

	settings := domain.DefaultProjectSettings()
	settings.RerankingEnabled = true
	updated, err := uc.UpdateProject(context.Background(), testUserID, project.ID, domain.ProjectInput{Name: "renamed", Settings: &settings})
	if err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	if updated.Name != "renamed" || !updated.Settings.RerankingEnabled {
		t.Fatalf("unexpected update %+v", updated)
	}

	stored, err := uc.GetProject(context.Background(), testUserID, project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if stored.ReindexStatus != domain.ReindexCompleted || stored.ReindexTotal != 3 {
		t.Fatalf("reindex state must survive updates, got %+v", stored)
	}
}

func TestProjectOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)
	uc := NewProjectUseCase(env.projects)

	if _, err := uc.GetProject(context.Background(), "intruder", project.ID); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}
	if _, err := uc.GetProject(context.Background(), "", project.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	projects, err := uc.ListProjects(context.Background(), "intruder")
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("expected no projects for another user, got %d", len(projects))
	}
}
