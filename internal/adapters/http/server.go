// Package http exposes the session lifecycle over a small JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/result"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Client is the part of lattice.Client the API needs.
type Client interface {
	RunPolicy(ctx context.Context, policy domain.Policy, query string, params domain.Params, delay time.Duration) (*result.Cursor, error)
	Release(ctx context.Context, id domain.ResultID) error
	Pending() []domain.ResultID
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query   string         `json:"query"`
	Params  map[string]any `json:"params,omitempty"`
	Policy  string         `json:"policy,omitempty"`
	DelayMS int64          `json:"delay_ms,omitempty"`
}

// QueryResponse is returned by POST /v1/query. ResultID is only set for
// manual results, the only ones that can be released.
type QueryResponse struct {
	ResultID domain.ResultID `json:"result_id,omitempty"`
	Policy   domain.Policy   `json:"policy"`
	Records  []domain.Record `json:"records"`
}

// ResultsResponse is returned by GET /v1/results.
type ResultsResponse struct {
	Pending []domain.ResultID `json:"pending"`
}

type errorResponse struct {
	Error string `json:"error"`
	// ResultID names a manual result whose session is still held after a failure.
	ResultID domain.ResultID `json:"result_id,omitempty"`
}

// Server serves the API.
type Server struct {
	Client   Client
	Gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves gatherer on /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.Gatherer = gatherer
	}
}

// NewHandler creates the HTTP handler for client.
func NewHandler(client Client, opts ...Option) http.Handler {
	s := &Server{Client: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.Query)
		r.Get("/results", s.ListResults)
		r.Delete("/results/{id}", s.ReleaseResult)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Query handles POST /v1/query. Non-manual results are read to the end
// before responding, so their sessions are disposed per policy.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var body QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("query: invalid request body", "err", err)
		return
	}
	if body.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	policy, err := domain.ParsePolicy(body.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params, err := domain.ParamsFromMap(body.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	delay := time.Duration(body.DelayMS) * time.Millisecond
	cur, err := s.Client.RunPolicy(r.Context(), policy, body.Query, params, delay)
	if err != nil {
		status := statusFor(err)
		writeError(w, status, err.Error())
		s.logger.Error("query failed", "policy", policy, "status", status, "err", err)
		return
	}

	records, err := cur.List(r.Context())
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		if policy == domain.PolicyManual {
			resp.ResultID = cur.ID()
		}
		writeJSON(w, http.StatusBadGateway, resp)
		s.logger.Error("query read failed", "result_id", cur.ID(), "err", err)
		return
	}

	resp := QueryResponse{Policy: policy, Records: records}
	if resp.Records == nil {
		resp.Records = []domain.Record{}
	}
	if policy == domain.PolicyManual {
		resp.ResultID = cur.ID()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListResults handles GET /v1/results.
func (s *Server) ListResults(w http.ResponseWriter, r *http.Request) {
	pending := s.Client.Pending()
	if pending == nil {
		pending = []domain.ResultID{}
	}
	writeJSON(w, http.StatusOK, ResultsResponse{Pending: pending})
}

// ReleaseResult handles DELETE /v1/results/{id}.
func (s *Server) ReleaseResult(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	id := domain.ResultID(raw)
	if err := s.Client.Release(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrResultNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth), errors.Is(err, domain.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrDuplicateResultID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
