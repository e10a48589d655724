package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

// Router dispatches extraction by file extension. Unknown extensions fall
// back to the plain-text extractor, which rejects binary content.
type Router struct {
	pdf       ports.TextExtractor
	excel     ports.TextExtractor
	plaintext ports.TextExtractor
}

func NewRouter(pdf, excel, plaintext ports.TextExtractor) *Router {
	return &Router{pdf: pdf, excel: excel, plaintext: plaintext}
}

func (r *Router) Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error) {
	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return r.pdf.Extract(ctx, doc)
	case ".xlsx", ".xlsm", ".xls":
		return r.excel.Extract(ctx, doc)
	default:
		return r.plaintext.Extract(ctx, doc)
	}
}
