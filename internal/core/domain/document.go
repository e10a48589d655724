package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	PageCount   int            `json:"page_count,omitempty"`
	ChunkCount  int            `json:"chunk_count,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CatalogEntry is the minimal indexed-document view the resolver consumes.
// The resolver scans filenames only, never content.
type CatalogEntry struct {
	ID       string         `json:"id"`
	Filename string         `json:"filename"`
	Status   DocumentStatus `json:"status"`
}

// PageText is extracted document text with its page number and the char
// offset range within the concatenated document text.
type PageText struct {
	Number    int
	Text      string
	CharStart int
	CharEnd   int
}
