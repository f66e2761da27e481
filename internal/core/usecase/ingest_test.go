package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/raggae/internal/core/domain"
)

func newIngestUseCase(env *testEnv, queue *queueFake, mode domain.ProcessingMode) *IngestDocumentUseCase {
	if queue == nil {
		return NewIngestDocumentUseCase(env.projects, env.documents, env.blobs, env.processor, nil, mode)
	}
	return NewIngestDocumentUseCase(env.projects, env.documents, env.blobs, env.processor, queue, mode)
}

func paragraph(seed string, n int) string {
	var b strings.Builder
	for b.Len() < n-1 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(seed)
	}
	out := b.String()
	if len(out) > n-1 {
		out = strings.TrimSpace(out[:n-1])
	}
	return out + "."
}

func TestUploadAutoSelectsParagraphStrategy(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)
	text := strings.Join([]string{
		paragraph("the first paragraph talks about storage", 120),
		paragraph("the second paragraph covers retrieval", 120),
		paragraph("the third paragraph describes chunking", 120),
	}, "\n\n")

	results, err := newIngestUseCase(env, nil, domain.ProcessingSync).Upload(context.Background(), testUserID, project.ID, []domain.UploadFile{
		{FileName: "guide.txt", ContentType: "text/plain", Content: []byte(text)},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(results) != 1 || results[0].ErrorCode != "" {
		t.Fatalf("unexpected results %+v", results)
	}
	doc := results[0].Document
	if doc.ProcessingStrategy != domain.ChunkingParagraph {
		t.Fatalf("expected paragraph strategy, got %s", doc.ProcessingStrategy)
	}
	if doc.Status != domain.StatusIndexed {
		t.Fatalf("expected indexed status, got %s", doc.Status)
	}

	chunks := env.storedChunks(t, doc.ID)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			t.Fatalf("empty chunk persisted")
		}
	}
	if stored := env.storedDocument(t, doc.ID); stored.ProcessingStrategy != domain.ChunkingParagraph {
		t.Fatalf("persisted strategy = %s", stored.ProcessingStrategy)
	}
}

func TestUploadAutoSelectsHeadingSectionStrategy(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)
	text := "# Title\n\n## Section 1\n\nBody content for the first section of the handbook."

	results, err := newIngestUseCase(env, nil, domain.ProcessingSync).Upload(context.Background(), testUserID, project.ID, []domain.UploadFile{
		{FileName: "handbook.md", ContentType: "text/markdown", Content: []byte(text)},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	doc := results[0].Document
	if doc.ProcessingStrategy != domain.ChunkingHeadingSection {
		t.Fatalf("expected heading_section strategy, got %s", doc.ProcessingStrategy)
	}
	chunks := env.storedChunks(t, doc.ID)
	if len(chunks) == 0 || !strings.Contains(chunks[0].Content, "Section 1") {
		t.Fatalf("expected first chunk to contain the section heading, got %+v", chunks)
	}
}

func TestUploadReportsProcessingFailurePerFile(t *testing.T) {
	env := newTestEnv(t, nil)
	env.embedder.err = domain.WrapError(domain.ErrEmbeddingGeneration, "embed", errors.New("dimension mismatch"))
	project := env.seedProject(t, nil)

	results, err := newIngestUseCase(env, nil, domain.ProcessingSync).Upload(context.Background(), testUserID, project.ID, []domain.UploadFile{
		{FileName: "a.txt", Content: []byte(words(50))},
		{FileName: "", Content: []byte("x")},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ErrorCode != domain.UploadErrorProcessingFailed || !strings.Contains(results[0].Error, "dimension mismatch") {
		t.Fatalf("expected PROCESSING_FAILED, got %+v", results[0])
	}
	if results[0].Document == nil || results[0].Document.Status != domain.StatusError {
		t.Fatalf("expected errored document in result, got %+v", results[0].Document)
	}
	if results[1].ErrorCode != domain.UploadErrorInvalidFile {
		t.Fatalf("expected INVALID_FILE for unnamed file, got %+v", results[1])
	}
}

func TestUploadAsyncPublishesJob(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)
	queue := &queueFake{}

	results, err := newIngestUseCase(env, queue, domain.ProcessingAsync).Upload(context.Background(), testUserID, project.ID, []domain.UploadFile{
		{FileName: "my report.txt", Content: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	doc := results[0].Document
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status in async mode, got %s", doc.Status)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].DocumentID != doc.ID || queue.jobs[0].ProjectID != project.ID {
		t.Fatalf("unexpected jobs %+v", queue.jobs)
	}
	wantKey := "projects/" + project.ID + "/documents/" + doc.ID + "-my_report.txt"
	if doc.StorageKey != wantKey {
		t.Fatalf("storage key = %s, want %s", doc.StorageKey, wantKey)
	}
	if ok, _ := env.blobs.Exists(context.Background(), wantKey); !ok {
		t.Fatalf("expected blob to be stored")
	}

	if err := env.processor.ProcessByID(context.Background(), project.ID, doc.ID); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if stored := env.storedDocument(t, doc.ID); stored.Status != domain.StatusIndexed {
		t.Fatalf("expected worker to index document, got %s", stored.Status)
	}
}

func TestUploadAsyncPublishFailureAborts(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)
	queue := &queueFake{err: errors.New("nats down")}

	_, err := newIngestUseCase(env, queue, domain.ProcessingAsync).Upload(context.Background(), testUserID, project.ID, []domain.UploadFile{
		{FileName: "a.txt", Content: []byte("hello")},
	})
	if err == nil || !strings.Contains(err.Error(), "nats down") {
		t.Fatalf("expected publish error, got %v", err)
	}
}

func TestUploadOffModeOnlyStores(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)

	results, err := newIngestUseCase(env, nil, domain.ProcessingOff).Upload(context.Background(), testUserID, project.ID, []domain.UploadFile{
		{FileName: "a.txt", Content: []byte("hello")},
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if results[0].Document.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded status, got %s", results[0].Document.Status)
	}
	if len(env.embedder.embedded) != 0 {
		t.Fatalf("expected no embedding in off mode")
	}
}

func TestUploadRejectsForeignProject(t *testing.T) {
	env := newTestEnv(t, nil)
	project := env.seedProject(t, nil)

	_, err := newIngestUseCase(env, nil, domain.ProcessingSync).Upload(context.Background(), "intruder", project.ID, []domain.UploadFile{
		{FileName: "a.txt", Content: []byte("hello")},
	})
	if !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected project not found, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":         "report.pdf",
		"../../etc/passwd":   "passwd",
		"my file (1).docx":   "my_file__1_.docx",
		"C:\\docs\\plan.txt": "plan.txt",
		"":                   "document.bin",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
