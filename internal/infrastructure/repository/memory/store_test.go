package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/raggae/internal/core/domain"
)

func seed(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, project := range []domain.Project{
		{ID: "p1", UserID: "u1", Name: "one", CreatedAt: now},
		{ID: "p2", UserID: "u1", Name: "two", CreatedAt: now.Add(time.Hour)},
	} {
		p := project
		if err := store.Projects().Create(ctx, &p); err != nil {
			t.Fatalf("Create(project) error = %v", err)
		}
	}
	for _, doc := range []domain.Document{
		{ID: "d1", ProjectID: "p1", FileName: "a.txt", CreatedAt: now},
		{ID: "d2", ProjectID: "p2", FileName: "b.txt", CreatedAt: now},
	} {
		d := doc
		if err := store.Documents().Create(ctx, &d); err != nil {
			t.Fatalf("Create(document) error = %v", err)
		}
	}
}

func TestProjectRepository(t *testing.T) {
	store := NewStore()
	seed(t, store)
	repo := store.Projects()
	ctx := context.Background()

	projects, err := repo.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(projects) != 2 || projects[0].ID != "p2" {
		t.Fatalf("expected newest first, got %+v", projects)
	}

	if err := repo.UpdateReindexState(ctx, "p1", domain.ReindexInProgress, 1, 4); err != nil {
		t.Fatalf("UpdateReindexState() error = %v", err)
	}
	if err := repo.Update(ctx, &domain.Project{ID: "p1", Name: "renamed", ReindexStatus: domain.ReindexIdle}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := repo.GetByID(ctx, "p1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "renamed" || got.ReindexStatus != domain.ReindexInProgress || got.ReindexTotal != 4 {
		t.Fatalf("unexpected project %+v", got)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}
	if err := repo.Create(ctx, &domain.Project{ID: "p1"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestDocumentRepositoryRequiresProject(t *testing.T) {
	store := NewStore()
	err := store.Documents().Create(context.Background(), &domain.Document{ID: "d", ProjectID: "nope"})
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}
}

func TestChunkRepositoryRetrieveScopesAndAttachesParent(t *testing.T) {
	store := NewStore()
	seed(t, store)
	chunks := store.Chunks(nil)
	ctx := context.Background()

	err := chunks.SaveMany(ctx, []domain.DocumentChunk{
		{ID: "parent", DocumentID: "d1", ChunkIndex: 0, Content: "kubernetes schedules containers on nodes", Level: domain.ChunkLevelParent},
		{ID: "child", DocumentID: "d1", ChunkIndex: 1, Content: "kubernetes schedules containers", Level: domain.ChunkLevelChild, ParentChunkID: "parent", Embedding: []float32{1, 0}},
		{ID: "other", DocumentID: "d2", ChunkIndex: 0, Content: "kubernetes everywhere", Level: domain.ChunkLevelFlat, Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("SaveMany() error = %v", err)
	}

	got, err := chunks.Retrieve(ctx, domain.RetrievalQuery{
		ProjectID: "p1",
		Text:      "kubernetes containers",
		Embedding: []float32{1, 0},
		Limit:     5,
		Strategy:  domain.RetrievalHybrid,
	})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "child" {
		t.Fatalf("expected only the child of p1, got %+v", got)
	}
	if got[0].ParentContent != "kubernetes schedules containers on nodes" || got[0].DocumentFileName != "a.txt" {
		t.Fatalf("unexpected enrichment %+v", got[0])
	}
}

func TestChunkRepositoryCascadeAndIsolation(t *testing.T) {
	store := NewStore()
	seed(t, store)
	chunks := store.Chunks(nil)
	ctx := context.Background()

	meta := map[string]any{"k": "v"}
	if err := chunks.SaveMany(ctx, []domain.DocumentChunk{
		{ID: "c1", DocumentID: "d1", ChunkIndex: 1, Content: "b", Metadata: meta},
		{ID: "c0", DocumentID: "d1", ChunkIndex: 0, Content: "a"},
	}); err != nil {
		t.Fatalf("SaveMany() error = %v", err)
	}
	meta["k"] = "mutated"

	stored, err := chunks.FindByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatalf("FindByDocumentID() error = %v", err)
	}
	if len(stored) != 2 || stored[0].ID != "c0" || stored[1].Metadata["k"] != "v" {
		t.Fatalf("unexpected stored chunks %+v", stored)
	}

	if err := chunks.SaveMany(ctx, []domain.DocumentChunk{{ID: "x", DocumentID: "ghost"}}); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected document not found, got %v", err)
	}

	if err := store.Documents().Delete(ctx, "d1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if stored, _ := chunks.FindByDocumentID(ctx, "d1"); len(stored) != 0 {
		t.Fatalf("expected chunks removed with document, got %d", len(stored))
	}
}
