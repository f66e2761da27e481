package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
)

// IndexingPipeline turns one document's bytes into persisted chunks:
// extract, enrich, sanitize, pick a strategy, chunk, optionally split into
// parents and children, embed and replace the document's chunk set.
type IndexingPipeline struct {
	chunks    ports.ChunkRepository
	extractor ports.TextExtractor
	sanitizer ports.TextSanitizer
	analyzer  ports.StructureAnalyzer
	selector  ports.StrategySelector
	chunker   ports.Chunker
	embedder  ports.Embedder

	splitter ports.ParentChildSplitter
	metadata ports.MetadataExtractor
	language ports.LanguageDetector
	keywords ports.KeywordExtractor
	observer ports.PipelineObserver

	locks *keyedMutex
	now   func() time.Time
}

func NewIndexingPipeline(
	chunks ports.ChunkRepository,
	extractor ports.TextExtractor,
	sanitizer ports.TextSanitizer,
	analyzer ports.StructureAnalyzer,
	selector ports.StrategySelector,
	chunker ports.Chunker,
	embedder ports.Embedder,
) *IndexingPipeline {
	return &IndexingPipeline{
		chunks:    chunks,
		extractor: extractor,
		sanitizer: sanitizer,
		analyzer:  analyzer,
		selector:  selector,
		chunker:   chunker,
		embedder:  embedder,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithParentChild enables hierarchical chunking for projects that ask for it.
func (p *IndexingPipeline) WithParentChild(splitter ports.ParentChildSplitter) *IndexingPipeline {
	p.splitter = splitter
	return p
}

// WithEnrichment sets the best-effort enrichers. Any of them may be nil.
func (p *IndexingPipeline) WithEnrichment(
	metadata ports.MetadataExtractor,
	language ports.LanguageDetector,
	keywords ports.KeywordExtractor,
) *IndexingPipeline {
	p.metadata = metadata
	p.language = language
	p.keywords = keywords
	return p
}

func (p *IndexingPipeline) WithObserver(observer ports.PipelineObserver) *IndexingPipeline {
	p.observer = observer
	return p
}

// Run indexes content for doc under project settings and returns the updated
// document. Status transitions are left to the caller.
func (p *IndexingPipeline) Run(ctx context.Context, doc *domain.Document, project *domain.Project, content []byte) (*domain.Document, error) {
	if doc == nil || project == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run pipeline", fmt.Errorf("document and project are required"))
	}
	out := *doc
	strategy := domain.ChunkingStrategy("")
	persisted := 0

	started := p.now()
	slog.Info("pipeline_started", "document_id", doc.ID, "project_id", project.ID, "file_name", doc.FileName)

	var runErr error
	defer func() {
		if p.observer != nil {
			p.observer.ObservePipeline(strategy, persisted, runErr)
		}
	}()

	text, err := p.extract(ctx, &out, content)
	if err != nil {
		runErr = err
		return nil, err
	}

	p.enrich(ctx, &out, content, text)

	sanitized := p.sanitizer.Sanitize(text)
	strategy, err = p.selectStrategy(project, sanitized)
	if err != nil {
		runErr = err
		return nil, err
	}
	out.ProcessingStrategy = strategy
	slog.Info("pipeline_strategy_selected", "document_id", doc.ID, "strategy", string(strategy))

	baseChunks, err := p.chunker.Chunk(ctx, sanitized, strategy)
	if err != nil {
		runErr = fmt.Errorf("chunk text: %w", err)
		return nil, runErr
	}

	persisted, err = p.replaceChunks(ctx, &out, project, strategy, baseChunks, hasPageMarkers(sanitized))
	if err != nil {
		runErr = err
		return nil, err
	}

	slog.Info("pipeline_completed",
		"document_id", doc.ID,
		"strategy", string(strategy),
		"chunks", persisted,
		"duration_ms", p.now().Sub(started).Milliseconds(),
	)
	return &out, nil
}

func (p *IndexingPipeline) extract(ctx context.Context, doc *domain.Document, content []byte) (string, error) {
	text, err := p.extractor.Extract(ctx, doc.FileName, content, doc.ContentType)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

func (p *IndexingPipeline) selectStrategy(project *domain.Project, sanitized string) (domain.ChunkingStrategy, error) {
	configured, err := domain.ParseChunkingStrategy(string(project.Settings.ChunkingStrategy))
	if err != nil {
		return "", err
	}
	if configured != domain.ChunkingAuto {
		return configured, nil
	}
	return p.selector.Select(p.analyzer.Analyze(sanitized)), nil
}

// replaceChunks deletes the document's chunks and writes the new set while
// holding the per-document lock. It returns the number of persisted chunks.
func (p *IndexingPipeline) replaceChunks(
	ctx context.Context,
	doc *domain.Document,
	project *domain.Project,
	strategy domain.ChunkingStrategy,
	baseChunks []string,
	withPages bool,
) (int, error) {
	unlock := p.locks.Lock(doc.ID)
	defer unlock()

	if err := p.chunks.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("delete existing chunks: %w", err)
	}

	parts := stripChunks(baseChunks)
	if len(parts) == 0 {
		return 0, nil
	}

	var (
		records []domain.DocumentChunk
		err     error
	)
	if project.Settings.ParentChildChunking && p.splitter != nil {
		records, err = p.buildHierarchical(ctx, doc.ID, strategy, parts, withPages)
	} else {
		records, err = p.buildFlat(ctx, doc.ID, strategy, parts, withPages)
	}
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := p.chunks.SaveMany(ctx, records); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	return len(records), nil
}

// stripChunks removes page markers from every chunk, carrying the current
// page across chunk boundaries, and drops chunks left empty.
func stripChunks(chunks []string) []pagedText {
	out := make([]pagedText, 0, len(chunks))
	current := 0
	for _, chunk := range chunks {
		var part pagedText
		part, current = stripPageMarkers(chunk, current)
		if part.text == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (p *IndexingPipeline) buildFlat(
	ctx context.Context,
	documentID string,
	strategy domain.ChunkingStrategy,
	parts []pagedText,
	withPages bool,
) ([]domain.DocumentChunk, error) {
	texts := make([]string, len(parts))
	for i, part := range parts {
		texts[i] = part.text
	}
	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := p.now()
	records := make([]domain.DocumentChunk, len(parts))
	for i, part := range parts {
		metadata := domain.BaseChunkMetadata(strategy)
		if withPages {
			applyPageMetadata(metadata, part.pages)
		}
		records[i] = domain.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: i,
			Content:    part.text,
			Embedding:  vectors[i],
			Metadata:   metadata,
			Level:      domain.ChunkLevelFlat,
			CreatedAt:  now,
		}
	}
	return records, nil
}

func (p *IndexingPipeline) buildHierarchical(
	ctx context.Context,
	documentID string,
	strategy domain.ChunkingStrategy,
	parts []pagedText,
	withPages bool,
) ([]domain.DocumentChunk, error) {
	texts := make([]string, len(parts))
	for i, part := range parts {
		texts[i] = part.text
	}
	parents := p.splitter.Split(texts)

	childTexts := make([]string, 0, len(parents)*4)
	for _, parent := range parents {
		childTexts = append(childTexts, parent.Children...)
	}
	vectors, err := p.embed(ctx, childTexts)
	if err != nil {
		return nil, err
	}

	now := p.now()
	records := make([]domain.DocumentChunk, 0, len(parents)+len(childTexts))
	index, vectorIndex := 0, 0
	for _, parent := range parents {
		var parentPages []int
		if withPages {
			members := make([]pagedText, 0, len(parent.Parts))
			for _, idx := range parent.Parts {
				members = append(members, parts[idx])
			}
			parentPages = joinedPages(members, domain.ParentPartSeparator)
		}

		parentMetadata := domain.BaseChunkMetadata(strategy)
		if withPages {
			applyPageMetadata(parentMetadata, parentPages)
		}
		parentRecord := domain.DocumentChunk{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			ChunkIndex: index,
			Content:    parent.Text,
			Metadata:   parentMetadata,
			Level:      domain.ChunkLevelParent,
			CreatedAt:  now,
		}
		records = append(records, parentRecord)
		index++

		for i, child := range parent.Children {
			childMetadata := domain.BaseChunkMetadata(strategy)
			if withPages && i < len(parent.ChildSpans) {
				applyPageMetadata(childMetadata, spanPages(parentPages, parent.ChildSpans[i]))
			}
			records = append(records, domain.DocumentChunk{
				ID:            uuid.NewString(),
				DocumentID:    documentID,
				ChunkIndex:    index,
				Content:       child,
				Embedding:     vectors[vectorIndex],
				Metadata:      childMetadata,
				Level:         domain.ChunkLevelChild,
				ParentChunkID: parentRecord.ID,
				CreatedAt:     now,
			})
			index++
			vectorIndex++
		}
	}
	return records, nil
}

func (p *IndexingPipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingGeneration,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			return nil, domain.WrapError(domain.ErrEmbeddingGeneration, "embed chunks", fmt.Errorf("empty vector at position %d", i))
		}
	}
	return vectors, nil
}

// enrich fills title, authors, date, language and keywords. Every step is
// independent and failures are only logged.
func (p *IndexingPipeline) enrich(ctx context.Context, doc *domain.Document, content []byte, text string) {
	plain := strings.TrimSpace(stripAllPageMarkers(text))

	if p.metadata != nil {
		meta, err := p.metadata.ExtractMetadata(ctx, doc.FileName, content)
		if err != nil {
			logEnrichmentFailure(doc.ID, "file_metadata", err)
		} else {
			if meta.Title != "" {
				doc.Title = meta.Title
			}
			if len(meta.Authors) > 0 {
				doc.Authors = meta.Authors
			}
			if meta.DocumentDate != nil {
				doc.DocumentDate = meta.DocumentDate
			}
		}
	}

	if p.language != nil && plain != "" {
		language, err := p.language.DetectLanguage(plain)
		if err != nil {
			logEnrichmentFailure(doc.ID, "language", err)
		} else if language != "" {
			doc.Language = language
		}
	}

	if p.keywords != nil && plain != "" {
		keywords, err := p.keywords.ExtractKeywords(plain)
		if err != nil {
			logEnrichmentFailure(doc.ID, "keywords", err)
		} else if len(keywords) > 0 {
			doc.Keywords = keywords
		}
	}
}

func logEnrichmentFailure(documentID, step string, err error) {
	slog.Warn("enrichment_failed", "document_id", documentID, "step", step, "error", err)
}

// keyedMutex serializes work per key and frees idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refMutex{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
