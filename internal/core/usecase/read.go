package usecase

import (
	"context"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

type ReadDocumentUseCase struct {
	catalog ports.DocumentCatalog
}

func NewReadDocumentUseCase(catalog ports.DocumentCatalog) *ReadDocumentUseCase {
	return &ReadDocumentUseCase{catalog: catalog}
}

func (uc *ReadDocumentUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.catalog.GetByID(ctx, id)
}
