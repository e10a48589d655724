package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/akazantsev/specqa/internal/core/domain"
	"github.com/akazantsev/specqa/internal/core/ports"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "bm25"
)

// Client is a hybrid search backend on a single Qdrant collection with a
// named dense vector and a named sparse vector per point. Keyword and
// vector sub-scores stay independent so the fusion weights decided per
// query can be applied client-side.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   ports.Embedder

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		embedder:   embedder,
	}
}

func (c *Client) Index(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID: chunk.ID,
			Vector: map[string]any{
				denseVectorName:  vectors[i],
				sparseVectorName: encodeSparseDocument(chunk.Content, doc.Filename),
			},
			Payload: map[string]any{
				"doc_id":     doc.ID,
				"filename":   doc.Filename,
				"page":       chunk.PageNumber,
				"char_start": chunk.CharStart,
				"char_end":   chunk.CharEnd,
				"text":       chunk.Content,
			},
		})
	}

	var out struct{}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, &out, "upsert")
}

func (c *Client) Search(ctx context.Context, req ports.SearchRequest) ([]domain.Chunk, error) {
	queryVector, err := c.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	keywordText := req.Query
	if len(req.SectionTerms) > 0 {
		keywordText += " " + strings.Join(req.SectionTerms, " ")
	}

	overfetch := req.K * 2
	if overfetch < req.K {
		overfetch = req.K
	}

	sparseHits, err := c.queryPoints(ctx, map[string]any{
		"query": encodeSparseQuery(keywordText),
		"using": sparseVectorName,
	}, overfetch, req.Filter)
	if err != nil {
		return nil, err
	}
	denseHits, err := c.queryPoints(ctx, map[string]any{
		"query": queryVector,
		"using": denseVectorName,
	}, overfetch, req.Filter)
	if err != nil {
		return nil, err
	}

	return fuseHits(sparseHits, denseHits, req.Weights, req.K), nil
}

func (c *Client) SearchVector(ctx context.Context, query string, k int, filter domain.DocumentFilter) ([]domain.Chunk, error) {
	queryVector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := c.queryPoints(ctx, map[string]any{
		"query": queryVector,
		"using": denseVectorName,
	}, k, filter)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Chunk, 0, len(hits))
	for _, h := range hits {
		chunk := h.toChunk()
		chunk.VectorScore = h.Score
		chunk.CombinedScore = h.Score
		out = append(out, chunk)
	}
	return out, nil
}

type scoredHit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (h scoredHit) toChunk() domain.Chunk {
	return domain.Chunk{
		ID:         h.ID,
		DocumentID: getStringPayload(h.Payload, "doc_id"),
		Filename:   getStringPayload(h.Payload, "filename"),
		Content:    getStringPayload(h.Payload, "text"),
		PageNumber: getIntPayload(h.Payload, "page"),
		CharStart:  getIntPayload(h.Payload, "char_start"),
		CharEnd:    getIntPayload(h.Payload, "char_end"),
	}
}

func (c *Client) queryPoints(ctx context.Context, query map[string]any, limit int, filter domain.DocumentFilter) ([]scoredHit, error) {
	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	for k, v := range query {
		reqBody[k] = v
	}
	if len(filter) > 0 {
		reqBody["filter"] = map[string]any{
			"must": []map[string]any{
				{
					"key": "doc_id",
					"match": map[string]any{
						"any": []string(filter),
					},
				},
			},
		}
	}

	var queryResp struct {
		Result struct {
			Points []scoredHit `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/query", c.collection)
	if err := c.do(ctx, http.MethodPost, path, reqBody, &queryResp, "query"); err != nil {
		return nil, err
	}
	return queryResp.Result.Points, nil
}

// fuseHits merges the sparse and dense result lists by point ID. Sub-scores
// are max-normalized within each list before the weighted combination so
// BM25 magnitudes and cosine similarities live on the same scale.
func fuseHits(sparse, dense []scoredHit, weights domain.FusionWeights, k int) []domain.Chunk {
	byID := make(map[string]*domain.Chunk, len(sparse)+len(dense))
	order := make([]string, 0, len(sparse)+len(dense))

	add := func(h scoredHit) *domain.Chunk {
		if existing, ok := byID[h.ID]; ok {
			return existing
		}
		chunk := h.toChunk()
		byID[h.ID] = &chunk
		order = append(order, h.ID)
		return &chunk
	}

	sparseMax := maxScore(sparse)
	for _, h := range sparse {
		chunk := add(h)
		chunk.BM25Score = normalizeScore(h.Score, sparseMax)
	}
	denseMax := maxScore(dense)
	for _, h := range dense {
		chunk := add(h)
		chunk.VectorScore = normalizeScore(h.Score, denseMax)
	}

	out := make([]domain.Chunk, 0, len(order))
	for _, id := range order {
		chunk := byID[id]
		chunk.CombinedScore = weights.Keyword*chunk.BM25Score + weights.Vector*chunk.VectorScore
		out = append(out, *chunk)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].ID < out[j].ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func maxScore(hits []scoredHit) float64 {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max
}

func normalizeScore(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	normalized := score / max
	if normalized < 0 {
		return 0
	}
	return normalized
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}

	var out struct{}
	path := fmt.Sprintf("/collections/%s", c.collection)
	if err := c.do(ctx, http.MethodPut, path, reqBody, &out, "ensure collection"); err != nil {
		var statusErr *httpStatusError
		// 409 when the collection already exists (depends on version/config).
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			c.markCollectionEnsured(vectorSize)
			return nil
		}
		return err
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

type httpStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
