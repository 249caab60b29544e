// Package httpapi serves generation, batch and agent calls over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exo-agent/internal/application/port/input"
	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/metrics"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-Id"
)

// AgentProvider returns the agent serving /v1/agent, creating it on first use.
type AgentProvider func(ctx context.Context) (output.Agent, error)

type Deps struct {
	Generator input.Generator
	Agent     AgentProvider
	Collector *metrics.Collector
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   output.LoggerPort
	// RequestLog enables structured per-request access logs.
	RequestLog bool
}

type Server struct {
	deps Deps
}

func NewRouter(deps Deps) http.Handler {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(requestID)
	if deps.RequestLog {
		r.Use(httplog.RequestLogger(httplog.NewLogger("exo-agent", httplog.Options{
			JSON:    true,
			Concise: true,
		})))
	}
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.healthz)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/backends", s.listBackends)
		r.Get("/backends/{id}/models", s.listModels)
		r.Post("/generate", s.generate)
		r.Post("/batch", s.batch)
		r.Post("/agent", s.agent)
	})

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Collector == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Collector.RecordHTTPRequest(r.Method, route, status, time.Since(start))
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listBackends(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"backends": s.deps.Generator.Backends()})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	models, err := s.deps.Generator.ListModels(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backend": id, "models": models})
}

type generateRequest struct {
	Backend string                  `json:"backend"`
	Prompt  string                  `json:"prompt"`
	Params  entity.GenerationParams `json:"params"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Generator.Generate(r.Context(), req.Backend, entity.GenerationRequest{
		Prompt: req.Prompt,
		Params: req.Params,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Backend     string                  `json:"backend"`
	Prompts     []string                `json:"prompts"`
	Params      entity.GenerationParams `json:"params"`
	Concurrency int                     `json:"concurrency"`
}

type batchItem struct {
	ID     string                   `json:"id"`
	Index  int                      `json:"index"`
	Result *entity.GenerationResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
	Kind   string                   `json:"kind,omitempty"`
}

func (s *Server) batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Prompts) == 0 {
		s.writeError(w, r, entity.ConfigError("prompts must not be empty"))
		return
	}

	reqs := make([]entity.GenerationRequest, len(req.Prompts))
	for i, p := range req.Prompts {
		reqs[i] = entity.GenerationRequest{Prompt: p, Params: req.Params}
	}

	items, err := s.deps.Generator.GenerateBatch(r.Context(), req.Backend, reqs, req.Concurrency)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]batchItem, len(items))
	failed := 0
	for i, it := range items {
		out[i] = batchItem{ID: it.ID, Index: it.Index, Result: it.Result}
		if it.Err != nil {
			out[i].Error = it.Err.Error()
			out[i].Kind = metrics.Status(it.Err)
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "failed": failed})
}

type agentRequest struct {
	Message string `json:"message"`
}

func (s *Server) agent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "agent is not configured", Kind: "unavailable"})
		return
	}

	var req agentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	agent, err := s.deps.Agent(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := agent.Process(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && s.deps.Logger != nil {
		s.deps.Logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"requestId", w.Header().Get(requestIDHeader),
			"error", err,
		)
	}
	kind := metrics.Status(err)
	if errors.Is(err, entity.ErrUnknownBackend) {
		kind = "unknown_backend"
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrUnknownBackend), errors.Is(err, entity.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrUninitialized):
		return http.StatusConflict
	case errors.Is(err, entity.ErrBackend), errors.Is(err, entity.ErrBrowser):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return entity.ConfigError("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
