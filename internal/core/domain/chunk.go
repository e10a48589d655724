package domain

// Chunk is one retrievable unit of indexed document text.
type Chunk struct {
	ID            string  `json:"id"`
	DocumentID    string  `json:"document_id"`
	Filename      string  `json:"filename"`
	Content       string  `json:"content"`
	PageNumber    int     `json:"page_number"`
	CharStart     int     `json:"char_start"`
	CharEnd       int     `json:"char_end"`
	BM25Score     float64 `json:"bm25_score"`
	VectorScore   float64 `json:"vector_score"`
	CombinedScore float64 `json:"combined_score"`
}

// DocumentFilter scopes retrieval to a document ID set. A nil filter means
// search everything.
type DocumentFilter []string

func (f DocumentFilter) Contains(documentID string) bool {
	for _, id := range f {
		if id == documentID {
			return true
		}
	}
	return false
}

type SubqueryCount struct {
	SubQuery string `json:"subquery"`
	Hits     int    `json:"hits"`
}

type RetrievalMetadata struct {
	TotalCandidates int             `json:"total_candidates"`
	PerSubquery     []SubqueryCount `json:"per_subquery"`
	Reranked        bool            `json:"reranked"`
	DocumentFilter  DocumentFilter  `json:"document_filter,omitempty"`
}

type RetrievalResult struct {
	Chunks        []Chunk           `json:"chunks"`
	Decomposition Decomposition     `json:"decomposition"`
	Metadata      RetrievalMetadata `json:"metadata"`
	Confidence    int               `json:"confidence"`
}
