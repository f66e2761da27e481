package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/raggae/internal/core/domain"
)

func TestChunkSaveManyWritesInTransaction(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewChunkRepository(db, nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("parent", "doc-1", 0, "whole text", nil, sqlmock.AnyArg(), "parent", nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs("child", "doc-1", 1, "text", "[1,0.5]", sqlmock.AnyArg(), "child", "parent", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveMany(context.Background(), []domain.DocumentChunk{
		{ID: "parent", DocumentID: "doc-1", ChunkIndex: 0, Content: "whole text", Level: domain.ChunkLevelParent, CreatedAt: now},
		{ID: "child", DocumentID: "doc-1", ChunkIndex: 1, Content: "text", Level: domain.ChunkLevelChild, ParentChunkID: "parent", Embedding: []float32{1, 0.5}, CreatedAt: now},
	})
	if err != nil {
		t.Fatalf("SaveMany() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChunkSaveManyRollsBackOnError(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewChunkRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_chunks").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.SaveMany(context.Background(), []domain.DocumentChunk{{ID: "c", DocumentID: "doc-1", Level: domain.ChunkLevelFlat}})
	if err == nil {
		t.Fatalf("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChunkRetrieveRanksCandidates(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewChunkRepository(db, nil)

	rows := sqlmock.NewRows([]string{
		"id", "document_id", "file_name", "chunk_index", "content", "embedding", "metadata", "chunk_level", "parent_chunk_id", "content",
	}).
		AddRow("c1", "doc-1", "a.txt", 1, "database connection pool", "[0,1]", []byte(`{"processing_strategy":"paragraph"}`), "child", "p1", "parent text").
		AddRow("c2", "doc-2", "b.txt", 0, "kubernetes schedules containers", "[1,0]", []byte(`{"processing_strategy":"fixed_window"}`), "flat", nil, nil)
	mock.ExpectQuery("FROM document_chunks c").
		WithArgs("project-1", string(domain.ChunkLevelParent)).
		WillReturnRows(rows)

	got, err := repo.Retrieve(context.Background(), domain.RetrievalQuery{
		ProjectID: "project-1",
		Text:      "kubernetes containers",
		Embedding: []float32{1, 0},
		Limit:     5,
		Strategy:  domain.RetrievalHybrid,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 || got[0].ChunkID != "c2" {
		t.Fatalf("expected the matching chunk first, got %+v", got)
	}
	if got[0].DocumentFileName != "b.txt" || got[0].Metadata["processing_strategy"] != "fixed_window" {
		t.Fatalf("unexpected candidate fields %+v", got[0])
	}
	if got[1].ParentContent != "parent text" || got[1].ParentChunkID != "p1" {
		t.Fatalf("expected parent context on child, got %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChunkRetrieveAppliesMetadataFilter(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewChunkRepository(db, nil)

	rows := sqlmock.NewRows([]string{
		"id", "document_id", "file_name", "chunk_index", "content", "embedding", "metadata", "chunk_level", "parent_chunk_id", "content",
	}).
		AddRow("c1", "doc-1", "a.txt", 0, "alpha", nil, []byte(`{"processing_strategy":"paragraph"}`), "flat", nil, nil).
		AddRow("c2", "doc-2", "b.txt", 0, "alpha", nil, []byte(`{"processing_strategy":"semantic"}`), "flat", nil, nil)
	mock.ExpectQuery("FROM document_chunks c").WillReturnRows(rows)

	got, err := repo.Retrieve(context.Background(), domain.RetrievalQuery{
		ProjectID:       "project-1",
		Text:            "alpha",
		Limit:           5,
		Strategy:        domain.RetrievalFulltext,
		MetadataFilters: map[string]any{"processing_strategy": "semantic"},
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "c2" || got[0].Embedding != nil {
		t.Fatalf("unexpected filtered result %+v", got)
	}
}
