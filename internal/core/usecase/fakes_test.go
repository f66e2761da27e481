package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/infrastructure/chunking"
	"github.com/kirillkom/raggae/internal/infrastructure/repository/memory"
	"github.com/kirillkom/raggae/internal/infrastructure/textproc"
)

const testUserID = "user-1"

var projectSeq atomic.Int64

type blobFake struct {
	mu          sync.Mutex
	files       map[string][]byte
	uploadErr   error
	downloadErr map[string]error
}

func newBlobFake() *blobFake {
	return &blobFake{files: make(map[string][]byte), downloadErr: make(map[string]error)}
}

func (f *blobFake) Upload(_ context.Context, key string, data []byte, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = append([]byte(nil), data...)
	return nil
}

func (f *blobFake) Download(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.downloadErr[key]; err != nil {
		return nil, "", err
	}
	data, ok := f.files[key]
	if !ok {
		return nil, "", domain.WrapError(domain.ErrFileNotFound, "download", fmt.Errorf("key=%s", key))
	}
	return data, "text/plain", nil
}

func (f *blobFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

func (f *blobFake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[key]
	return ok, nil
}

// passthroughExtractor treats file bytes as already extracted text.
type passthroughExtractor struct {
	err error
}

func (f *passthroughExtractor) Extract(_ context.Context, fileName string, content []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(content) == 0 {
		return "", domain.WrapError(domain.ErrDocumentExtraction, "extract", fmt.Errorf("empty file %s", fileName))
	}
	return string(content), nil
}

type vectorEmbedderFake struct {
	mu       sync.Mutex
	dim      int
	err      error
	embedded []string
	queries  []string
}

func (f *vectorEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.embedded = append(f.embedded, texts...)
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dimension())
		v[0] = 1
		v[1] = float32(len(text)%7) / 7
		out[i] = v
	}
	return out, nil
}

func (f *vectorEmbedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
	v := make([]float32, f.dimension())
	v[0] = 1
	return v, nil
}

func (f *vectorEmbedderFake) dimension() int {
	if f.dim < 2 {
		return 4
	}
	return f.dim
}

type fixedChunksFake struct {
	chunks []string
}

func (f *fixedChunksFake) Chunk(context.Context, string, domain.ChunkingStrategy) ([]string, error) {
	return append([]string(nil), f.chunks...), nil
}

type metadataFake struct {
	meta domain.FileMetadata
	err  error
}

func (f *metadataFake) ExtractMetadata(context.Context, string, []byte) (domain.FileMetadata, error) {
	return f.meta, f.err
}

type languageFake struct {
	lang string
	err  error
}

func (f *languageFake) DetectLanguage(string) (string, error) { return f.lang, f.err }

type keywordsFake struct {
	keywords []string
	err      error
}

func (f *keywordsFake) ExtractKeywords(string) ([]string, error) { return f.keywords, f.err }

type observerFake struct {
	mu        sync.Mutex
	pipelines []observedPipeline
	reindexes []domain.ReindexResult
}

type observedPipeline struct {
	strategy domain.ChunkingStrategy
	chunks   int
	err      error
}

func (f *observerFake) ObservePipeline(strategy domain.ChunkingStrategy, chunks int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipelines = append(f.pipelines, observedPipeline{strategy: strategy, chunks: chunks, err: err})
}

func (f *observerFake) ObserveReindex(result domain.ReindexResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reindexes = append(f.reindexes, result)
}

type queueFake struct {
	jobs []ports.DocumentJob
	err  error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, job ports.DocumentJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, ports.DocumentJob) error) error {
	return errors.New("not supported")
}

// testEnv wires the real text processing and chunking stack over the
// in-memory store with fake extraction, embedding and blob storage.
type testEnv struct {
	store     *memory.Store
	projects  *memory.ProjectRepository
	documents *memory.DocumentRepository
	chunks    *memory.ChunkRepository
	blobs     *blobFake
	extractor *passthroughExtractor
	embedder  *vectorEmbedderFake
	observer  *observerFake
	pipeline  *IndexingPipeline
	processor *ProcessDocumentUseCase
}

func newTestEnv(t *testing.T, chunker ports.Chunker) *testEnv {
	t.Helper()
	if chunker == nil {
		chunker = chunking.NewDispatcher(
			chunking.NewFixedWindowChunker(200, 20),
			chunking.NewParagraphChunker(200, 20, 0),
			chunking.NewHeadingSectionChunker(200, 20),
			nil,
		)
	}
	store := memory.NewStore()
	env := &testEnv{
		store:     store,
		projects:  store.Projects(),
		documents: store.Documents(),
		chunks:    store.Chunks(nil),
		blobs:     newBlobFake(),
		extractor: &passthroughExtractor{},
		embedder:  &vectorEmbedderFake{dim: 4},
		observer:  &observerFake{},
	}
	env.pipeline = NewIndexingPipeline(
		env.chunks,
		env.extractor,
		textproc.NewSanitizer(),
		textproc.NewAnalyzer(),
		textproc.NewSelector(),
		chunker,
		env.embedder,
	).WithParentChild(chunking.NewParentChildSplitter(200, 80, 20)).WithObserver(env.observer)
	env.processor = NewProcessDocumentUseCase(env.projects, env.documents, env.blobs, env.pipeline)
	return env
}

func (e *testEnv) seedProject(t *testing.T, mutate func(*domain.ProjectSettings)) *domain.Project {
	t.Helper()
	settings := domain.DefaultProjectSettings()
	if mutate != nil {
		mutate(&settings)
	}
	now := time.Now().UTC()
	project := &domain.Project{
		ID:            fmt.Sprintf("project-%d", projectSeq.Add(1)),
		UserID:        testUserID,
		Name:          "test",
		Settings:      settings,
		ReindexStatus: domain.ReindexIdle,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.projects.Create(context.Background(), project); err != nil {
		t.Fatalf("Create(project) error = %v", err)
	}
	return project
}

func (e *testEnv) seedDocument(t *testing.T, projectID, id, fileName, content string) *domain.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          id,
		ProjectID:   projectID,
		UserID:      testUserID,
		FileName:    fileName,
		ContentType: "text/plain",
		FileSize:    int64(len(content)),
		StorageKey:  documentStorageKey(projectID, id, fileName),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if content != "" {
		if err := e.blobs.Upload(context.Background(), doc.StorageKey, []byte(content), doc.ContentType); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
	}
	if err := e.documents.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create(document) error = %v", err)
	}
	return doc
}

func (e *testEnv) storedChunks(t *testing.T, documentID string) []domain.DocumentChunk {
	t.Helper()
	chunks, err := e.chunks.FindByDocumentID(context.Background(), documentID)
	if err != nil {
		t.Fatalf("FindByDocumentID() error = %v", err)
	}
	return chunks
}

func (e *testEnv) storedDocument(t *testing.T, documentID string) *domain.Document {
	t.Helper()
	doc, err := e.documents.GetByID(context.Background(), documentID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return doc
}

func assertDenseIndexes(t *testing.T, chunks []domain.DocumentChunk) {
	t.Helper()
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Fatalf("chunk_index not dense: position %d has index %d", i, chunk.ChunkIndex)
		}
	}
}

func words(n int) string {
	vocabulary := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	out := make([]byte, 0, n*7)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, vocabulary[i%len(vocabulary)]...)
	}
	return string(out)
}
