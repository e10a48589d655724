package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteFallsBackOnRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		model, _ := payload["model"].(string)
		if model == "primary" {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"response":"fallback answer"}`))
	}))
	defer server.Close()

	client := New(server.URL, []string{"primary", "secondary"}, "embed")
	result, err := client.Complete(context.Background(), "question?")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if result.ModelUsed != "secondary" {
		t.Fatalf("ModelUsed = %q, want secondary", result.ModelUsed)
	}
	if result.Text != "fallback answer" {
		t.Fatalf("Text = %q", result.Text)
	}
}

func TestCompleteStopsOnNonRetryableStatus(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		model, _ := payload["model"].(string)
		models = append(models, model)
		http.Error(w, "invalid prompt", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, []string{"primary", "secondary"}, "embed")
	_, err := client.Complete(context.Background(), "question?")
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, model := range models {
		if model == "secondary" {
			t.Fatalf("bad request should not fall through to secondary model")
		}
	}
}

func TestCompleteJSONSetsFormat(t *testing.T) {
	var capturedFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedFormat, _ = payload["format"].(string)
		_, _ = w.Write([]byte(`{"response":"{\"score\":7}"}`))
	}))
	defer server.Close()

	client := New(server.URL, []string{"gen"}, "embed")
	result, err := client.CompleteJSON(context.Background(), "score this")
	if err != nil {
		t.Fatalf("CompleteJSON() error = %v", err)
	}
	if capturedFormat != "json" {
		t.Fatalf("format = %q, want json", capturedFormat)
	}
	if !strings.Contains(result.Text, "score") {
		t.Fatalf("unexpected text: %s", result.Text)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, []string{"gen"}, "embed")
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}
