package ports

import (
	"context"
	"io"

	"github.com/akazantsev/specqa/internal/core/domain"
)

// DocumentCatalog persists document state and feeds the resolver with
// indexed filenames.
type DocumentCatalog interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetIndexStats(ctx context.Context, id string, pageCount, chunkCount int) error
	ListIndexed(ctx context.Context) ([]domain.CatalogEntry, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion lifecycle events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishDocumentIndexed(ctx context.Context, documentID string) error
	SubscribeDocumentIndexed(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts page-aware plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error)
}

// Chunker splits extracted pages into retrievable chunks carrying page
// numbers and char offsets.
type Chunker interface {
	Split(pages []domain.PageText) []domain.Chunk
}

// Embedder builds vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchRequest is one hybrid search call against the backend.
type SearchRequest struct {
	Query        string
	K            int
	Filter       domain.DocumentFilter
	Weights      domain.FusionWeights
	SectionTerms []string
}

// SearchBackend indexes chunks and performs hybrid keyword+vector search
// with independent bm25/vector sub-scores per chunk.
type SearchBackend interface {
	Index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, req SearchRequest) ([]domain.Chunk, error)
	// SearchVector is the degraded vector-only path used when the hybrid
	// query fails for a non-timeout reason.
	SearchVector(ctx context.Context, query string, k int, filter domain.DocumentFilter) ([]domain.Chunk, error)
}

// Completion is one judge/generator call result.
type Completion struct {
	Text      string
	ModelUsed string
}

// JudgeClient is the opaque text-generation capability used for answer
// generation and for relevance/coherence judging. Model fallback and
// rate-limit handling live behind this port.
type JudgeClient interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
	CompleteJSON(ctx context.Context, prompt string) (Completion, error)
}
