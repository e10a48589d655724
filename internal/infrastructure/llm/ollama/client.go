package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akazantsev/specqa/internal/core/ports"
	"github.com/akazantsev/specqa/internal/infrastructure/resilience"
)

// Client talks to an Ollama server. Generation walks the configured model
// list: a rate-limited or otherwise retryable failure on one model falls
// through to the next, so callers only ever see an exhausted-fallbacks
// error plus the name of the model that finally answered.
type Client struct {
	baseURL    string
	genModels  []string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, genModels []string, embedModel string) *Client {
	if len(genModels) == 0 {
		genModels = []string{"llama3.1:8b"}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModels:  genModels,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   resilience.NewExecutor(resilience.DefaultConfig()),
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (ports.Completion, error) {
	return c.completeWithFallback(ctx, prompt, false)
}

func (c *Client) CompleteJSON(ctx context.Context, prompt string) (ports.Completion, error) {
	return c.completeWithFallback(ctx, prompt, true)
}

func (c *Client) completeWithFallback(ctx context.Context, prompt string, jsonMode bool) (ports.Completion, error) {
	var lastErr error
	for _, model := range c.genModels {
		if err := ctx.Err(); err != nil {
			return ports.Completion{}, err
		}

		text, err := c.generate(ctx, model, prompt, jsonMode)
		if err == nil {
			return ports.Completion{Text: text, ModelUsed: model}, nil
		}
		lastErr = err
		if !shouldFallThrough(err) {
			break
		}
	}
	return ports.Completion{}, wrapTemporaryIfNeeded("generate", fmt.Errorf("all models failed: %w", lastErr))
}

func (c *Client) generate(ctx context.Context, model, prompt string, jsonMode bool) (string, error) {
	reqBody := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
	if jsonMode {
		reqBody["format"] = "json"
	}

	operation := "generate"
	if jsonMode {
		operation = "generate_json"
	}

	var response struct {
		Response string `json:"response"`
	}
	err := c.executor.Execute(ctx, "ollama."+operation, func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, operation)
	}, classifyOllamaError)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Embedder builds vectors for chunk content and query text.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.executor.Execute(ctx, "ollama.embed", func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed", err)
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
