package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract returns the whole file as a single page. Plain text carries no
// page structure, so downstream citations point at page 1.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("not valid utf-8: %s", doc.Filename))
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return []domain.PageText{{
		Number:    1,
		Text:      text,
		CharStart: 0,
		CharEnd:   len([]rune(text)),
	}}, nil
}
