package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/raggae/internal/config"
	"github.com/kirillkom/raggae/internal/core/domain"
	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/core/retrieval"
	"github.com/kirillkom/raggae/internal/core/usecase"
	"github.com/kirillkom/raggae/internal/infrastructure/chunking"
	"github.com/kirillkom/raggae/internal/infrastructure/embedding"
	"github.com/kirillkom/raggae/internal/infrastructure/enrichment"
	"github.com/kirillkom/raggae/internal/infrastructure/extractor"
	"github.com/kirillkom/raggae/internal/infrastructure/queue/nats"
	"github.com/kirillkom/raggae/internal/infrastructure/repository/memory"
	"github.com/kirillkom/raggae/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/raggae/internal/infrastructure/resilience"
	"github.com/kirillkom/raggae/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/raggae/internal/infrastructure/storage/minio"
	"github.com/kirillkom/raggae/internal/infrastructure/textproc"
)

type Options struct {
	// Observer receives pipeline and reindex outcomes; nil disables it.
	Observer ports.PipelineObserver
	// RequireQueue connects NATS even when processing mode is not async (worker).
	RequireQueue bool
}

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Projects  ports.ProjectService
	Ingest    ports.DocumentIngestor
	Documents ports.DocumentReader
	Processor ports.DocumentProcessor
	Reindexer ports.ProjectReindexer
	Query     ports.QueryService

	closers []func()
}

type stores struct {
	projects  ports.ProjectRepository
	documents ports.DocumentRepository
	chunks    ports.ChunkRepository
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	engine := retrieval.NewEngine(cfg.RetrievalVectorWeight, cfg.RetrievalFulltextWeight)
	repos, err := app.openStores(ctx, cfg, engine)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))
	provider, err := embeddingProvider(cfg)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewService(provider, executor, embedding.Options{
		Dimension:   cfg.EmbeddingDimension,
		BatchSize:   cfg.EmbeddingBatchSize,
		Concurrency: cfg.EmbeddingConcurrency,
	})

	mode := domain.ParseProcessingMode(cfg.ProcessingMode)
	var queue ports.MessageQueue
	if mode == domain.ProcessingAsync || opts.RequireQueue {
		natsQueue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closers = append(app.closers, natsQueue.Close)
		queue = natsQueue
	}

	chunker := chunking.NewDispatcher(
		chunking.NewFixedWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		chunking.NewParagraphChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ParagraphContextChars),
		chunking.NewHeadingSectionChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		chunking.NewSemanticChunker(embedder, cfg.ChunkSize, cfg.ChunkOverlap, cfg.SemanticThreshold),
	)
	pipeline := usecase.NewIndexingPipeline(
		repos.chunks,
		extractor.New(),
		textproc.NewSanitizer(),
		textproc.NewAnalyzer(),
		textproc.NewSelector(),
		chunker,
		embedder,
	).
		WithParentChild(chunking.NewParentChildSplitter(cfg.ParentChunkSize, cfg.ChildChunkSize, cfg.ChildChunkOverlap)).
		WithEnrichment(
			enrichment.NewFileMetadataExtractor(),
			enrichment.NewLanguageDetector(),
			enrichment.NewFrequencyKeywordExtractor(cfg.KeywordsMax),
		)
	if opts.Observer != nil {
		pipeline = pipeline.WithObserver(opts.Observer)
	}

	processor := usecase.NewProcessDocumentUseCase(repos.projects, repos.documents, blobs, pipeline)

	app.Queue = queue
	app.Projects = usecase.NewProjectUseCase(repos.projects)
	app.Ingest = usecase.NewIngestDocumentUseCase(repos.projects, repos.documents, blobs, processor, queue, mode)
	app.Documents = usecase.NewDocumentQueryUseCase(repos.projects, repos.documents, repos.chunks, blobs)
	app.Processor = processor
	app.Reindexer = usecase.NewProjectReindexUseCase(repos.projects, repos.documents, processor, opts.Observer)
	app.Query = usecase.NewQueryUseCase(repos.projects, repos.chunks, embedder, usecase.NewMMRReranker(cfg.MMRLambda))

	ok = true
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config, engine *retrieval.Engine) (stores, error) {
	switch cfg.StoreBackend {
	case "memory":
		store := memory.NewStore()
		return stores{projects: store.Projects(), documents: store.Documents(), chunks: store.Chunks(engine)}, nil
	case "", "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return stores{}, fmt.Errorf("ensure schema: %w", err)
		}
		return postgresStores(db, engine), nil
	default:
		return stores{}, domain.WrapError(domain.ErrInvalidInput, "open stores", fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend))
	}
}

func postgresStores(db *sql.DB, engine *retrieval.Engine) stores {
	return stores{
		projects:  postgres.NewProjectRepository(db),
		documents: postgres.NewDocumentRepository(db),
		chunks:    postgres.NewChunkRepository(db, engine),
	}
}

func openBlobStorage(ctx context.Context, cfg config.Config) (ports.BlobStorage, error) {
	switch cfg.BlobBackend {
	case "", "localfs":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return storage, nil
	case "minio":
		storage, err := minio.New(ctx, minio.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.MinioRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("init minio storage: %w", err)
		}
		return storage, nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "open blob storage", fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend))
	}
}

func embeddingProvider(cfg config.Config) (embedding.BatchEmbedder, error) {
	timeout := time.Duration(cfg.EmbeddingTimeoutSeconds) * time.Second
	switch cfg.EmbeddingProvider {
	case "", "ollama":
		return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaEmbedModel, timeout), nil
	case "openai":
		return embedding.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIEmbedModel, cfg.EmbeddingDimension, timeout), nil
	case "hashing":
		return embedding.NewHashingProvider(cfg.EmbeddingDimension), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "embedding provider", fmt.Errorf("unknown EMBEDDING_PROVIDER %q", cfg.EmbeddingProvider))
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		RetryMultiplier:         cfg.RetryMultiplier,
		RetryAfterMax:           time.Duration(cfg.RetryAfterMaxMS) * time.Millisecond,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutMS) * time.Millisecond,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
	}
}
