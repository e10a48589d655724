package chunking

import (
	"strings"

	"github.com/google/uuid"

	"github.com/akazantsev/specqa/internal/core/domain"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split windows each page independently so a chunk never spans a page
// boundary and its page number stays exact. Offsets are document-global,
// anchored at the page's CharStart.
func (s *Splitter) Split(pages []domain.PageText) []domain.Chunk {
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var out []domain.Chunk
	for _, page := range pages {
		runes := []rune(page.Text)
		for start := 0; start < len(runes); start += step {
			end := start + s.ChunkSize
			if end > len(runes) {
				end = len(runes)
			}
			content := strings.TrimSpace(string(runes[start:end]))
			if content != "" {
				out = append(out, domain.Chunk{
					ID:         uuid.NewString(),
					Content:    content,
					PageNumber: page.Number,
					CharStart:  page.CharStart + start,
					CharEnd:    page.CharStart + end,
				})
			}
			if end == len(runes) {
				break
			}
		}
	}
	return out
}
