package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	catalog   ports.DocumentCatalog
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	search    ports.SearchBackend
	queue     ports.MessageQueue
}

func NewProcessDocumentUseCase(
	catalog ports.DocumentCatalog,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	search ports.SearchBackend,
	queue ports.MessageQueue,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		catalog:   catalog,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		search:    search,
		queue:     queue,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	pageCount, chunkCount, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.catalog.SetIndexStats(ctx, documentID, pageCount, chunkCount); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save index stats: %w", err)
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}

	if err := uc.queue.PublishDocumentIndexed(ctx, documentID); err != nil {
		// The document is searchable; resolver caches catch up on TTL expiry.
		return fmt.Errorf("publish indexed event: %w", err)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (pageCount, chunkCount int, err error) {
	doc, err := uc.catalog.GetByID(ctx, documentID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return 0, 0, fmt.Errorf("extract text: %w", err)
	}
	if len(pages) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("no extractable text"))
	}

	chunks := uc.chunker.Split(pages)
	if len(chunks) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
		chunks[i].Filename = doc.Filename
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return 0, 0, err
	}

	if err := uc.search.Index(ctx, doc, chunks, vectors); err != nil {
		return 0, 0, fmt.Errorf("index chunks: %w", err)
	}

	return len(pages), len(chunks), nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.catalog.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
