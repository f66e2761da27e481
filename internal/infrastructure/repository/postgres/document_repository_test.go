package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/raggae/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func documentRowColumns() []string {
	return []string{
		"id", "project_id", "user_id", "file_name", "content_type", "file_size", "storage_key", "status", "error_message",
		"last_indexed_at", "processing_strategy", "title", "authors", "document_date", "language", "keywords", "created_at", "updated_at",
	}
}

func TestDocumentGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery("SELECT id, project_id, user_id, file_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentGetByIDScansEnrichment(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewDocumentRepository(db)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(documentRowColumns()).AddRow(
		"doc-1", "p1", "u1", "report.pdf", "application/pdf", int64(42), "projects/p1/documents/doc-1-report.pdf",
		"indexed", "", now, "paragraph", "Annual report", []byte(`["Ann","Bob"]`), nil, "en", []byte(`["revenue"]`), now, now,
	)
	mock.ExpectQuery("SELECT id, project_id, user_id, file_name").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusIndexed || doc.ProcessingStrategy != domain.ChunkingParagraph {
		t.Fatalf("unexpected status fields %+v", doc)
	}
	if len(doc.Authors) != 2 || doc.Keywords[0] != "revenue" || doc.DocumentDate != nil || doc.LastIndexedAt == nil {
		t.Fatalf("unexpected enrichment fields %+v", doc)
	}
}

func TestDocumentUpdateReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), "", nil, "", "", sqlmock.AnyArg(), nil, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &domain.Document{ID: "missing", Status: domain.StatusProcessing})
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentDeleteReturnsDomainNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("DELETE FROM documents").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
