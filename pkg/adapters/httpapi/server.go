// Package httpapi exposes the agent over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dugoutlabs/dugout/internal/logging"
	"github.com/dugoutlabs/dugout/pkg/domain"
	"github.com/dugoutlabs/dugout/pkg/engine"
)

// Agent is the surface the HTTP layer needs from the assistant.
type Agent interface {
	Ask(ctx context.Context, sessionID, query string) (*engine.Result, error)
	Resume(ctx context.Context, sessionID string, value any) (*engine.Result, error)
	Sessions(ctx context.Context) ([]string, error)
	Abandon(ctx context.Context, sessionID string) error
}

// Server wires the agent into a chi router.
type Server struct {
	agent  Agent
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewHandler builds the HTTP handler. When gatherer is non-nil a /metrics
// endpoint is mounted for it.
func NewHandler(agent Agent, gatherer prometheus.Gatherer, opts ...Option) http.Handler {
	s := &Server{agent: agent, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Post("/messages", s.postMessage)
			r.Post("/resume", s.postResume)
			r.Delete("/", s.deleteSession)
		})
	})
	return r
}

type messageRequest struct {
	Query string `json:"query"`
}

type resumeRequest struct {
	Value any `json:"value"`
}

// resultResponse is the wire form of an engine result. State is omitted; the
// answer and any pending interrupt are what callers act on.
type resultResponse struct {
	SessionID string            `json:"session_id"`
	Terminal  bool              `json:"terminal"`
	Answer    string            `json:"answer,omitempty"`
	Interrupt *domain.Interrupt `json:"interrupt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "a non-empty query field is required"})
		return
	}

	res, err := s.agent.Ask(r.Context(), chi.URLParam(r, "sessionID"), body.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) postResume(w http.ResponseWriter, r *http.Request) {
	var body resumeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.agent.Resume(r.Context(), chi.URLParam(r, "sessionID"), body.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(res))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.agent.Sessions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Abandon(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionPaused),
		errors.Is(err, domain.ErrNoPendingInterrupt),
		errors.Is(err, domain.ErrCheckpointConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidResume):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func toResponse(res *engine.Result) resultResponse {
	return resultResponse{
		SessionID: res.SessionID,
		Terminal:  res.Terminal(),
		Answer:    res.Answer,
		Interrupt: res.Interrupt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
