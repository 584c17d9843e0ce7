package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/covidash/internal/config"
	"github.com/aretw0/covidash/internal/logging"
	"github.com/aretw0/covidash/internal/presentation/graph"
	"github.com/aretw0/covidash/pkg/adapters/memory"
	"github.com/aretw0/covidash/pkg/domain"
	"github.com/aretw0/covidash/pkg/reactive"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var rawSpec []byte

// Engine defines the interface for the covidash session core.
type Engine interface {
	Start(ctx context.Context, sessionID string) (string, error)
	Apply(ctx context.Context, sessionID string, p domain.InputPatch) (*domain.SelectionDiff, error)
	View(ctx context.Context, sessionID string) (domain.View, error)
	Artifacts(ctx context.Context, sessionID string) (memory.Artifacts, error)
	Choices(ctx context.Context, sessionID string) (domain.Choices, error)
	Refresh(ctx context.Context, sessionID string) error
	Inspect(ctx context.Context, sessionID string) ([]reactive.NodeInfo, error)
	Close(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
	Active() []string
}

// Server serves the session API over chi.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	spec    *openapi3.T
	version string
	metrics http.Handler
	cors    bool
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithCORS allows cross-origin browser clients.
func WithCORS(enabled bool) Option {
	return func(s *Server) {
		s.cors = enabled
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion reports the build version on /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// NewServer creates a Server for engine.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		spec:    spec,
		version: "unknown",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s, nil
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s, err := NewServer(engine, opts...)
	if err != nil {
		return nil, err
	}
	return s.Handler(), nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/events", s.SubscribeEvents)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetView)
			r.Delete("/", s.CloseSession)
			r.Patch("/inputs", s.ApplyInputs)
			r.Post("/refresh", s.RefreshSession)
			r.Get("/artifacts", s.GetArtifacts)
			r.Get("/choices", s.GetChoices)
			r.Get("/graph", s.GetGraph)
		})
	})

	if s.cors {
		return enableCORS(r)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Relay broadcasts every session ID received on refreshed as a refresh
// event, until the channel closes.
func (s *Server) Relay(refreshed <-chan string) {
	for id := range refreshed {
		if bytes, err := json.Marshal(event{SessionID: id, Refreshed: true}); err == nil {
			s.Streams.Broadcast(id, string(bytes))
			s.Streams.Broadcast(globalTopic, string(bytes))
		}
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "covidash-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	stored, err := s.Engine.Sessions(r.Context())
	if err != nil {
		s.writeError(w, "ListSessions", err)
		return
	}
	if stored == nil {
		stored = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{
		"stored": stored,
		"active": append([]string{}, s.Engine.Active()...),
	})
}

type startRequest struct {
	ID string `json:"id"`
}

type sessionResponse struct {
	ID   string      `json:"id"`
	View domain.View `json:"view"`
}

// StartSession handles the POST /sessions request.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StartSession: Invalid request body", "err", err)
		return
	}

	id, err := s.Engine.Start(r.Context(), body.ID)
	if err != nil {
		s.logger.Error("StartSession failed", "session_id", body.ID, "err", err)
		if status := statusFor(err); status != http.StatusInternalServerError {
			s.writeJSON(w, status, errorBody{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
		return
	}
	resp := sessionResponse{ID: id}
	if v, err := s.Engine.View(r.Context(), id); err == nil {
		resp.View = v
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// GetView handles the GET /sessions/{id} request.
func (s *Server) GetView(w http.ResponseWriter, r *http.Request) {
	v, err := s.Engine.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetView", err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// CloseSession handles the DELETE /sessions/{id} request.
func (s *Server) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var err error
	if r.URL.Query().Get("purge") == "true" {
		err = s.Engine.Delete(r.Context(), id)
	} else {
		err = s.Engine.Close(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, "CloseSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyResponse struct {
	Diff  *domain.SelectionDiff `json:"diff"`
	View  *domain.View          `json:"view,omitempty"`
	Error string                `json:"error,omitempty"`
}

// ApplyInputs handles the PATCH /sessions/{id}/inputs request.
func (s *Server) ApplyInputs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("ApplyInputs: Invalid request body", "err", err)
		return
	}
	patch, err := config.DecodePatch(raw)
	if err != nil {
		s.writeError(w, "ApplyInputs", err)
		return
	}

	diff, err := s.Engine.Apply(r.Context(), id, patch)
	if diff != nil && !diff.IsEmpty() {
		s.logger.Debug("ApplyInputs: Diff calculated", "diff", diff, "session_id", id)
		if bytes, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(id, string(bytes))
		}
	}
	if err != nil {
		if diff == nil || !errors.Is(err, reactive.ErrEvaluation) {
			s.writeError(w, "ApplyInputs", err)
			return
		}
		// The inputs are committed; only rendering failed.
		s.writeJSON(w, http.StatusUnprocessableEntity, applyResponse{Diff: diff, Error: err.Error()})
		return
	}

	resp := applyResponse{Diff: diff}
	if v, err := s.Engine.View(r.Context(), id); err == nil {
		resp.View = &v
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// RefreshSession handles the POST /sessions/{id}/refresh request.
func (s *Server) RefreshSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.Refresh(r.Context(), id); err != nil {
		s.writeError(w, "RefreshSession", err)
		return
	}
	if bytes, err := json.Marshal(event{SessionID: id, Refreshed: true}); err == nil {
		s.Streams.Broadcast(id, string(bytes))
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetArtifacts handles the GET /sessions/{id}/artifacts request.
func (s *Server) GetArtifacts(w http.ResponseWriter, r *http.Request) {
	a, err := s.Engine.Artifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetArtifacts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

// GetChoices handles the GET /sessions/{id}/choices request.
func (s *Server) GetChoices(w http.ResponseWriter, r *http.Request) {
	c, err := s.Engine.Choices(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetChoices", err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

// GetGraph handles the GET /sessions/{id}/graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.Engine.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "GetGraph", err)
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, graph.GenerateMermaid(nodes, &graph.GraphOverlay{Dirty: true, Epochs: true}))
		return
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps domain and engine errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoData),
		errors.Is(err, domain.ErrMissingPopulation),
		errors.Is(err, reactive.ErrEvaluation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
