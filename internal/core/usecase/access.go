package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

// loadOwnedProject hides projects of other users behind ErrProjectNotFound.
func loadOwnedProject(ctx context.Context, projects ports.ProjectRepository, userID, projectID string) (*domain.Project, error) {
	if userID == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "load project", fmt.Errorf("missing user id"))
	}
	project, err := projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project by id: %w", err)
	}
	if !project.OwnedBy(userID) {
		return nil, domain.WrapError(domain.ErrProjectNotFound, "load project", fmt.Errorf("project=%s", projectID))
	}
	return project, nil
}

// loadProjectDocument returns the document only when it belongs to projectID.
func loadProjectDocument(ctx context.Context, documents ports.DocumentRepository, projectID, documentID string) (*domain.Document, error) {
	doc, err := documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.ProjectID != projectID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "load document", fmt.Errorf("document=%s project=%s", documentID, projectID))
	}
	return doc, nil
}
