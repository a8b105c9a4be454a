// Package server serves the method table and generated components over HTTP.
//
// Routes:
//
//	GET /healthz                                  liveness and source name
//	GET /methods                                  the method table
//	GET /methods/{name}/components?threshold=800  components as GeoJSON
//	GET /metrics                                  Prometheus metrics, if configured
//
// Validation errors answer 400 with a JSON body {"code", "message"}; other
// failures answer 500 with the same body.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/export"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
	"github.com/geohistoricaldata/cassinigraph/pkg/observability"
	"github.com/geohistoricaldata/cassinigraph/pkg/pipeline"
)

// Config configures a Server.
type Config struct {
	// Runner runs the requested method. Its sink factory is ignored: results
	// are returned in the response only.
	Runner *pipeline.Runner

	// Table resolves method names. Defaults to method.Default().
	Table *method.Table

	// Options is the template of every run (region, workers, timeout).
	// Threshold comes from the request.
	Options pipeline.Options

	// Metrics serves /metrics when set.
	Metrics http.Handler

	Logger *log.Logger
}

// Server is the HTTP front of the pipeline.
type Server struct {
	runner  *pipeline.Runner
	table   *method.Table
	opts    pipeline.Options
	metrics http.Handler
	logger  *log.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.Table == nil {
		cfg.Table = method.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	runner := *cfg.Runner
	runner.Sinks = nil
	return &Server{
		runner:  &runner,
		table:   cfg.Table,
		opts:    cfg.Options,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.healthz)
	r.Get("/methods", s.listMethods)
	r.Get("/methods/{name}/components", s.components)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// instrument reports every request to the HTTP hooks.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.HTTP().OnRequest(r.Context(), r.Method, route, status, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed)
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"source": s.runner.Source.Name(),
	})
}

type methodView struct {
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Kind           method.Kind      `json:"kind"`
	Attribute      string           `json:"attribute"`
	NeedsThreshold bool             `json:"needs_threshold"`
	Predicate      method.Predicate `json:"predicate"`
}

func (s *Server) listMethods(w http.ResponseWriter, _ *http.Request) {
	ms := s.table.Methods()
	out := make([]methodView, len(ms))
	for i, m := range ms {
		out[i] = methodView{
			Name:           m.Name,
			Description:    m.Description,
			Kind:           m.Kind,
			Attribute:      m.Attribute(),
			NeedsThreshold: m.NeedsThreshold(),
			Predicate:      m.Predicate,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) components(w http.ResponseWriter, r *http.Request) {
	m, err := s.table.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	opts := s.opts
	if m.NeedsThreshold() {
		t, err := errors.ParseThreshold(r.URL.Query().Get("threshold"))
		if err != nil {
			writeError(w, err)
			return
		}
		opts.Threshold = t
	}

	res, err := s.runner.Run(r.Context(), m, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("X-Run-Id", res.RunID)
	if err := export.WriteGeoJSON(w, opts.Layer(m), res.Records); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.IsValidation(err) {
		status = http.StatusBadRequest
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, errorBody{Code: code, Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
