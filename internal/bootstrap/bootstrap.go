package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/akazantsev/specqa/internal/config"
	"github.com/akazantsev/specqa/internal/core/ports"
	"github.com/akazantsev/specqa/internal/core/usecase"
	"github.com/akazantsev/specqa/internal/infrastructure/catalog/postgres"
	"github.com/akazantsev/specqa/internal/infrastructure/chunking"
	"github.com/akazantsev/specqa/internal/infrastructure/extractor"
	"github.com/akazantsev/specqa/internal/infrastructure/extractor/excel"
	"github.com/akazantsev/specqa/internal/infrastructure/extractor/pdf"
	"github.com/akazantsev/specqa/internal/infrastructure/extractor/plaintext"
	"github.com/akazantsev/specqa/internal/infrastructure/llm/ollama"
	"github.com/akazantsev/specqa/internal/infrastructure/queue/nats"
	"github.com/akazantsev/specqa/internal/infrastructure/search/qdrant"
	"github.com/akazantsev/specqa/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Catalog   ports.DocumentCatalog
	Resolver  *usecase.DocumentResolver
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	ReadUC    ports.DocumentReader
	AskUC     ports.QuestionService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	catalog := postgres.NewDocumentRepository(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSIndexedSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModels, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient)

	searchBackend := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewRouter(
		pdf.NewExtractor(storage),
		excel.NewExtractor(storage),
		plaintext.NewExtractor(storage),
	)

	resolver := usecase.NewDocumentResolver(catalog, time.Duration(cfg.ResolverTTLSeconds)*time.Second)
	askUC := usecase.NewAskUseCase(
		resolver,
		usecase.NewQueryDecomposer(ollamaClient),
		usecase.NewHybridRetriever(searchBackend),
		usecase.NewReranker(ollamaClient),
		usecase.NewRetrievalEvaluator(ollamaClient),
		usecase.NewGroundingVerifier(ollamaClient),
		usecase.NewRefusalDetector(ollamaClient),
		usecase.NewCoherenceValidator(ollamaClient),
		usecase.NewConfidenceAggregator(ollamaClient),
		ollamaClient,
		usecase.AskLimits{
			CandidateK:      cfg.CandidateK,
			TopK:            cfg.TopK,
			RegenerationMax: cfg.RegenerationMax,
			SearchTimeout:   time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
			JudgeTimeout:    time.Duration(cfg.JudgeTimeoutSeconds) * time.Second,
			GenerateTimeout: time.Duration(cfg.GenerateTimeoutSeconds) * time.Second,
			RetryDeadline:   time.Duration(cfg.RetryDeadlineSeconds) * time.Second,
		},
	)

	ingestUC := usecase.NewIngestDocumentUseCase(catalog, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(catalog, extract, chunker, embedder, searchBackend, queue)
	readUC := usecase.NewReadDocumentUseCase(catalog)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Catalog:  catalog,
		Resolver: resolver,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		ReadUC:    readUC,
		AskUC:     askUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
