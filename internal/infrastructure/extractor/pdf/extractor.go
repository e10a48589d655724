package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract pulls plain text page by page. Char offsets are cumulative over
// the whole document so chunk positions stay comparable across pages.
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

	pdfReader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}

	var pages []domain.PageText
	offset := 0
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d of %s: %w", pageNum, doc.Filename, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		length := len([]rune(text))
		pages = append(pages, domain.PageText{
			Number:    pageNum,
			Text:      text,
			CharStart: offset,
			CharEnd:   offset + length,
		})
		offset += length + 1
	}
	return pages, nil
}
