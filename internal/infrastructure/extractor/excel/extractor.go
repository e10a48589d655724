package excel

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// Extract renders each sheet as one page, rows pipe-delimited so tabular
// requirement data keeps its column association in chunk text.
func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse workbook", err)
	}
	defer workbook.Close()

	var pages []domain.PageText
	offset := 0
	for sheetIndex, sheet := range workbook.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var b strings.Builder
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}

		text := strings.TrimSpace(b.String())
		if text == sheet {
			continue
		}

		length := len([]rune(text))
		pages = append(pages, domain.PageText{
			Number:    sheetIndex + 1,
			Text:      text,
			CharStart: offset,
			CharEnd:   offset + length,
		})
		offset += length + 1
	}
	return pages, nil
}
