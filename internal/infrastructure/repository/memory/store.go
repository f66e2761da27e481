// Package memory keeps projects, documents and chunks in process memory.
// It backs STORE_BACKEND=memory and end-to-end tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/retrieval"
)

type Store struct {
	mu        sync.RWMutex
	projects  map[string]domain.Project
	documents map[string]domain.Document
	chunks    map[string][]domain.DocumentChunk
}

func NewStore() *Store {
	return &Store{
		projects:  make(map[string]domain.Project),
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.DocumentChunk),
	}
}

func (s *Store) Projects() *ProjectRepository {
	return &ProjectRepository{store: s}
}

func (s *Store) Documents() *DocumentRepository {
	return &DocumentRepository{store: s}
}

func (s *Store) Chunks(engine *retrieval.Engine) *ChunkRepository {
	if engine == nil {
		engine = retrieval.NewEngine(retrieval.DefaultVectorWeight, retrieval.DefaultFulltextWeight)
	}
	return &ChunkRepository{store: s, engine: engine}
}

type ProjectRepository struct {
	store *Store
}

func (r *ProjectRepository) Create(_ context.Context, project *domain.Project) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.projects[project.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create project", fmt.Errorf("duplicate id %s", project.ID))
	}
	r.store.projects[project.ID] = *project
	return nil
}

func (r *ProjectRepository) GetByID(_ context.Context, id string) (*domain.Project, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	project, ok := r.store.projects[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrProjectNotFound, "get project by id", fmt.Errorf("project=%s", id))
	}
	return &project, nil
}

func (r *ProjectRepository) ListByOwner(_ context.Context, userID string) ([]domain.Project, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Project, 0, 8)
	for _, project := range r.store.projects {
		if project.UserID == userID {
			out = append(out, project)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update stores name, description and settings; reindex fields are kept.
func (r *ProjectRepository) Update(_ context.Context, project *domain.Project) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.projects[project.ID]
	if !ok {
		return domain.WrapError(domain.ErrProjectNotFound, "update project", fmt.Errorf("project=%s", project.ID))
	}
	current.Name = project.Name
	current.Description = project.Description
	current.OrganizationID = project.OrganizationID
	current.Settings = project.Settings
	current.UpdatedAt = project.UpdatedAt
	r.store.projects[project.ID] = current
	return nil
}

func (r *ProjectRepository) UpdateReindexState(_ context.Context, id string, status domain.ReindexStatus, progress, total int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.projects[id]
	if !ok {
		return domain.WrapError(domain.ErrProjectNotFound, "update reindex state", fmt.Errorf("project=%s", id))
	}
	current.ReindexStatus = status
	current.ReindexProgress = progress
	current.ReindexTotal = total
	r.store.projects[id] = current
	return nil
}

type DocumentRepository struct {
	store *Store
}

func (r *DocumentRepository) Create(_ context.Context, doc *domain.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.projects[doc.ProjectID]; !ok {
		return domain.WrapError(domain.ErrProjectNotFound, "create document", fmt.Errorf("project=%s", doc.ProjectID))
	}
	r.store.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

func (r *DocumentRepository) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	doc, ok := r.store.documents[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document by id", fmt.Errorf("document=%s", id))
	}
	out := cloneDocument(doc)
	return &out, nil
}

// ListByProject returns documents oldest first.
func (r *DocumentRepository) ListByProject(_ context.Context, projectID string) ([]domain.Document, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.Document, 0, 16)
	for _, doc := range r.store.documents {
		if doc.ProjectID == projectID {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *DocumentRepository) Update(_ context.Context, doc *domain.Document) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.documents[doc.ID]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document", fmt.Errorf("document=%s", doc.ID))
	}
	r.store.documents[doc.ID] = cloneDocument(*doc)
	return nil
}

// Delete removes the document and its chunks.
func (r *DocumentRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.documents[id]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("document=%s", id))
	}
	delete(r.store.documents, id)
	delete(r.store.chunks, id)
	return nil
}

type ChunkRepository struct {
	store  *Store
	engine *retrieval.Engine
}

// SaveMany appends chunks; all of them must belong to stored documents.
func (r *ChunkRepository) SaveMany(_ context.Context, chunks []domain.DocumentChunk) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, chunk := range chunks {
		if _, ok := r.store.documents[chunk.DocumentID]; !ok {
			return domain.WrapError(domain.ErrDocumentNotFound, "save chunks", fmt.Errorf("document=%s", chunk.DocumentID))
		}
	}
	for _, chunk := range chunks {
		r.store.chunks[chunk.DocumentID] = append(r.store.chunks[chunk.DocumentID], cloneChunk(chunk))
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocumentID(_ context.Context, documentID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.chunks, documentID)
	return nil
}

func (r *ChunkRepository) FindByDocumentID(_ context.Context, documentID string) ([]domain.DocumentChunk, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	stored := r.store.chunks[documentID]
	out := make([]domain.DocumentChunk, len(stored))
	for i, chunk := range stored {
		out[i] = cloneChunk(chunk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	return out, nil
}

// Retrieve ranks every non-parent chunk of the project and attaches the
// parent text to retrieved children.
func (r *ChunkRepository) Retrieve(_ context.Context, query domain.RetrievalQuery) ([]domain.RetrievedChunk, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	parents := make(map[string]string)
	candidates := make([]domain.RetrievedChunk, 0, 64)
	for documentID, chunks := range r.store.chunks {
		doc, ok := r.store.documents[documentID]
		if !ok || doc.ProjectID != query.ProjectID {
			continue
		}
		for _, chunk := range chunks {
			if chunk.Level == domain.ChunkLevelParent {
				parents[chunk.ID] = chunk.Content
				continue
			}
			candidates = append(candidates, domain.RetrievedChunk{
				ChunkID:          chunk.ID,
				DocumentID:       chunk.DocumentID,
				DocumentFileName: doc.FileName,
				ChunkIndex:       chunk.ChunkIndex,
				Content:          chunk.Content,
				Metadata:         cloneMetadata(chunk.Metadata),
				Level:            chunk.Level,
				ParentChunkID:    chunk.ParentChunkID,
				Embedding:        chunk.Embedding,
			})
		}
	}

	ranked, _ := r.engine.Rank(query, candidates)
	for i := range ranked {
		if ranked[i].ParentChunkID != "" {
			ranked[i].ParentContent = parents[ranked[i].ParentChunkID]
		}
	}
	return ranked, nil
}

func cloneDocument(doc domain.Document) domain.Document {
	doc.Authors = append([]string(nil), doc.Authors...)
	doc.Keywords = append([]string(nil), doc.Keywords...)
	return doc
}

func cloneChunk(chunk domain.DocumentChunk) domain.DocumentChunk {
	chunk.Embedding = append([]float32(nil), chunk.Embedding...)
	chunk.Metadata = cloneMetadata(chunk.Metadata)
	return chunk
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for key, value := range metadata {
		out[key] = value
	}
	return out
}
