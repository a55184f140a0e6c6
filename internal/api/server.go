// Package api serves the reconciliation store over HTTP.
package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/tally/internal/engine"
	"github.com/Veraticus/tally/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// CorrelationHeader carries the request correlation ID in both directions.
const CorrelationHeader = "X-Correlation-Id"

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store  service.Storage
	engine *engine.Engine
	logger *slog.Logger
	token  string
	// reconcileMu serializes runs so two requests never publish the same
	// package concurrently.
	reconcileMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every route except
// the health check.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server over store, reconciling with eng.
func New(store service.Storage, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{store: store, engine: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.correlation)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Group(func(r chi.Router) {
		r.Use(s.auth)

		r.Route("/packages", func(r chi.Router) {
			r.Get("/", s.listPackages)
			r.Post("/", s.importPackages)
			r.Route("/{packageID}", func(r chi.Router) {
				r.Get("/", s.getPackage)
				r.Post("/archive", s.archivePackage)
				r.Get("/invoices/{invoiceID}", s.getInvoice)
				r.Get("/overrides", s.listOverrides)
				r.Post("/overrides", s.createOverride)
			})
		})
		r.Post("/reconcile", s.reconcile)
		r.Get("/queue", s.getQueue)
		r.Get("/metrics", s.metrics)
	})

	return r
}

func (s *Server) correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get(CorrelationHeader)
		if corrID == "" {
			corrID = uuid.NewString()
			r.Header.Set(CorrelationHeader, corrID)
		}
		w.Header().Set(CorrelationHeader, corrID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"corr_id", r.Header.Get(CorrelationHeader))
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, r, http.StatusUnauthorized, "AUTH_REQUIRED", "a valid bearer token is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.SchemaVersion(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": version})
}
