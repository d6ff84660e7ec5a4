// Package api exposes reconciliation over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RatePerSec     float64
	Burst          int
	MaxBodyBytes   int64
	Concurrency    int // per-session evaluation concurrency
}

// Server serves the reconciliation API. The store is optional; without it
// runs cannot be saved or listed.
type Server struct {
	matcher *family.Matcher
	store   store.Store
	opts    Options
	limiter *clientLimiter
}

// NewServer creates a Server. st may be nil.
func NewServer(m *family.Matcher, st store.Store, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Server{
		matcher: m,
		store:   st,
		opts:    opts,
		limiter: newClientLimiter(opts.RatePerSec, opts.Burst, 10*time.Minute),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limiter.middleware)
		r.Use(bodyLimit(s.opts.MaxBodyBytes))

		r.Post("/reconcile", s.handleReconcile)
		r.Post("/sessions", s.handleSession)

		r.Route("/runs", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleDeleteRun)
		})
	})

	return r
}
