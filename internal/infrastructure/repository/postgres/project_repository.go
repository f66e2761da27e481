package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/raggae/internal/core/domain"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, user_id, organization_id, name, description, settings, reindex_status, reindex_progress, reindex_total, created_at, updated_at`

func (r *ProjectRepository) Create(ctx context.Context, project *domain.Project) error {
	settingsJSON, err := json.Marshal(project.Settings)
	if err != nil {
		return fmt.Errorf("marshal project settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO projects (`+projectColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		project.ID, project.UserID, project.OrganizationID, project.Name, project.Description, settingsJSON,
		string(project.ReindexStatus), project.ReindexProgress, project.ReindexTotal, project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+projectColumns+`
FROM projects
WHERE id = $1
`, id)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wrapNotFound(domain.ErrProjectNotFound, "get project by id", id)
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+projectColumns+`
FROM projects
WHERE user_id = $1
ORDER BY created_at DESC, id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0)
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// Update writes the configuration fields only; reindex columns have their
// own statement.
func (r *ProjectRepository) Update(ctx context.Context, project *domain.Project) error {
	settingsJSON, err := json.Marshal(project.Settings)
	if err != nil {
		return fmt.Errorf("marshal project settings: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE projects
SET name = $2, description = $3, organization_id = $4, settings = $5, updated_at = $6
WHERE id = $1
`, project.ID, project.Name, project.Description, project.OrganizationID, settingsJSON, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return expectAffected(result, domain.ErrProjectNotFound, "update project", project.ID)
}

func (r *ProjectRepository) UpdateReindexState(ctx context.Context, id string, status domain.ReindexStatus, progress, total int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE projects
SET reindex_status = $2, reindex_progress = $3, reindex_total = $4
WHERE id = $1
`, id, string(status), progress, total)
	if err != nil {
		return fmt.Errorf("update reindex state: %w", err)
	}
	return expectAffected(result, domain.ErrProjectNotFound, "update reindex state", id)
}

func scanProject(row rowScanner) (domain.Project, error) {
	var project domain.Project
	var settingsRaw []byte
	var reindexStatus string
	err := row.Scan(
		&project.ID,
		&project.UserID,
		&project.OrganizationID,
		&project.Name,
		&project.Description,
		&settingsRaw,
		&reindexStatus,
		&project.ReindexProgress,
		&project.ReindexTotal,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return domain.Project{}, err
	}
	project.Settings = domain.DefaultProjectSettings()
	if len(settingsRaw) > 0 {
		if err := json.Unmarshal(settingsRaw, &project.Settings); err != nil {
			return domain.Project{}, fmt.Errorf("unmarshal project settings: %w", err)
		}
	}
	project.ReindexStatus = domain.ReindexStatus(reindexStatus)
	return project, nil
}

func wrapNotFound(kind error, operation, id string) error {
	return domain.WrapError(kind, operation, fmt.Errorf("id=%s", id))
}
