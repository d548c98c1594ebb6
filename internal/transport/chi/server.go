// Package chi is the stateless HTTP surface of the search service.
package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openscripture/versevec/internal/domain"
	"github.com/openscripture/versevec/internal/transport/apierr"
	healthuc "github.com/openscripture/versevec/internal/usecase/health"
	searchuc "github.com/openscripture/versevec/internal/usecase/search"
)

// Server implements the HTTP API.
type Server struct {
	search        *searchuc.Service
	registry      searchuc.CorpusRegistry
	health        *healthuc.Service
	defaultCorpus string
	logger        *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	registry searchuc.CorpusRegistry,
	health *healthuc.Service,
	defaultCorpus string,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:        search,
		registry:      registry,
		health:        health,
		defaultCorpus: defaultCorpus,
		logger:        logger,
	}
}

// Routes registers all HTTP endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/semantic-search", s.SemanticSearch)
	r.Get("/corpora", s.ListCorpora)
	r.Get("/health", s.Liveness)
	r.Get("/ready", s.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// SemanticSearch handles POST /semantic-search. Each call checks a store
// connection out of the pool and returns it before responding.
func (s *Server) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apierr.BadRequest("invalid request body: "+err.Error()))
		return
	}
	if req.Corpus == "" {
		req.Corpus = s.defaultCorpus
	}

	verses, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// A search with no matches answers [] rather than null.
	if verses == nil {
		verses = []domain.Verse{}
	}
	writeJSON(w, http.StatusOK, verses)
}

// corporaResponse is the GET /corpora body.
type corporaResponse struct {
	Corpora []string `json:"corpora"`
}

// ListCorpora handles GET /corpora.
func (s *Server) ListCorpora(w http.ResponseWriter, r *http.Request) {
	corpora := s.registry.Snapshot(r.Context())
	if corpora == nil {
		corpora = []string{}
	}
	writeJSON(w, http.StatusOK, corporaResponse{Corpora: corpora})
}

// Liveness handles GET /health: a static reply proving the process is up.
// It must not touch any dependency; a process running in degraded mode
// (store unreachable, registry on fallback) is still alive and must not be
// restart-looped by its orchestrator.
func (s *Server) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyResponse is the GET /ready body.
type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Readiness handles GET /ready: the per-dependency check report, 503 while
// any dependency is down.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, result := range report.Checks {
		checks[name] = string(result)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	status, payload := apierr.FromError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("search failed", zap.Error(err))
	} else {
		s.logger.Warn("search rejected", zap.Error(err))
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
