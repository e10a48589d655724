package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/akazantsev/specqa/internal/core/ports"
	"github.com/akazantsev/specqa/internal/observability/metrics"
)

type RouterConfig struct {
	Service         string
	RateLimitRPS    int
	RateLimitBurst  int
	MaxInFlight     int
	BackpressureMax time.Duration
}

type Router struct {
	askService ports.QuestionService
	ingestor   ports.DocumentIngestor
	reader     ports.DocumentReader
	metrics    *metrics.HTTPServerMetrics
	cfg        RouterConfig
}

func NewRouter(
	askService ports.QuestionService,
	ingestor ports.DocumentIngestor,
	reader ports.DocumentReader,
	serverMetrics *metrics.HTTPServerMetrics,
	cfg RouterConfig,
) *Router {
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	if cfg.BackpressureMax <= 0 {
		cfg.BackpressureMax = 2 * time.Second
	}
	return &Router{
		askService: askService,
		ingestor:   ingestor,
		reader:     reader,
		metrics:    serverMetrics,
		cfg:        cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureMax)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return corsMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	start := time.Now()
	answer, err := rt.askService.Ask(r.Context(), req.Question)
	if err != nil {
		rt.recordAsk("error", 0, time.Since(start))
		status := mapErrorToHTTPStatus(err)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
		return
	}

	rt.recordAsk("ok", len(answer.Sources), time.Since(start))
	if rt.metrics != nil {
		rt.metrics.RecordConfidence(
			rt.cfg.Service,
			answer.Confidence.Overall,
			answer.Confidence.Retrieval,
			answer.Confidence.Grounding,
			answer.Confidence.Coherence,
		)
		rt.metrics.RecordRetrievalRetries(rt.cfg.Service, answer.Stats.RetrievalRetries)
		rt.metrics.RecordRegenerations(rt.cfg.Service, answer.Stats.Regenerations)
		for stage, duration := range answer.Stats.StageDurations {
			rt.metrics.RecordStageDuration(rt.cfg.Service, stage, duration)
		}
		if answer.Stats.RerankFallback {
			rt.metrics.RecordJudgeFallback(rt.cfg.Service, "rerank")
		}
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recordAsk(status string, sources int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAsk(rt.cfg.Service, status, sources, duration)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
