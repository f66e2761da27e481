package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/raggae/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, project_id, user_id, file_name, content_type, file_size, storage_key, status, error_message,
	last_indexed_at, processing_strategy, title, authors, document_date, language, keywords, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	authorsJSON, keywordsJSON, err := marshalDocumentLists(doc)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		doc.ID, doc.ProjectID, doc.UserID, doc.FileName, doc.ContentType, doc.FileSize, doc.StorageKey,
		string(doc.Status), doc.ErrorMessage, doc.LastIndexedAt, string(doc.ProcessingStrategy),
		doc.Title, authorsJSON, doc.DocumentDate, doc.Language, keywordsJSON, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wrapNotFound(domain.ErrDocumentNotFound, "get document by id", id)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE project_id = $1
ORDER BY created_at, id
`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Update persists status, processing outcome and enrichment fields.
func (r *DocumentRepository) Update(ctx context.Context, doc *domain.Document) error {
	authorsJSON, keywordsJSON, err := marshalDocumentLists(doc)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, last_indexed_at = $4, processing_strategy = $5,
	title = $6, authors = $7, document_date = $8, language = $9, keywords = $10, updated_at = $11
WHERE id = $1
`,
		doc.ID, string(doc.Status), doc.ErrorMessage, doc.LastIndexedAt, string(doc.ProcessingStrategy),
		doc.Title, authorsJSON, doc.DocumentDate, doc.Language, keywordsJSON, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return expectAffected(result, domain.ErrDocumentNotFound, "update document", doc.ID)
}

// Delete removes the document row; chunks go with it through ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return expectAffected(result, domain.ErrDocumentNotFound, "delete document", id)
}

func marshalDocumentLists(doc *domain.Document) ([]byte, []byte, error) {
	authors := doc.Authors
	if authors == nil {
		authors = []string{}
	}
	keywords := doc.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	authorsJSON, err := json.Marshal(authors)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal authors: %w", err)
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal keywords: %w", err)
	}
	return authorsJSON, keywordsJSON, nil
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var status, strategy string
	var authorsRaw, keywordsRaw []byte
	err := row.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.UserID,
		&doc.FileName,
		&doc.ContentType,
		&doc.FileSize,
		&doc.StorageKey,
		&status,
		&doc.ErrorMessage,
		&doc.LastIndexedAt,
		&strategy,
		&doc.Title,
		&authorsRaw,
		&doc.DocumentDate,
		&doc.Language,
		&keywordsRaw,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.ProcessingStrategy = domain.ChunkingStrategy(strategy)
	if len(authorsRaw) > 0 {
		if err := json.Unmarshal(authorsRaw, &doc.Authors); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal authors: %w", err)
		}
	}
	if len(keywordsRaw) > 0 {
		if err := json.Unmarshal(keywordsRaw, &doc.Keywords); err != nil {
			return domain.Document{}, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	return doc, nil
}
