// Package api exposes the lead pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/cache"
	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/metrics"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// defaultInflightTTL bounds how long a job stays locked if its
// background goroutine never releases it.
const defaultInflightTTL = 2 * time.Hour

// Searcher creates and runs search jobs.
type Searcher interface {
	CreateSearch(ctx context.Context, req discovery.SearchRequest) (*model.SearchJob, error)
	Process(ctx context.Context, jobID string, withEnrichment bool) error
}

// Enricher enriches, audits, and rescores leads.
type Enricher interface {
	RunJob(ctx context.Context, jobID string) (*enrich.Summary, error)
	AuditLead(ctx context.Context, leadID string) (*model.Lead, error)
	RescoreAll(ctx context.Context) (int, error)
}

// Server wires HTTP handlers to the store and pipeline services.
type Server struct {
	router   chi.Router
	store    store.Store
	searcher Searcher
	enricher Enricher

	// inflight holds job ids with background work running.
	inflight *cache.TTL[string, time.Time]
	bg       context.Context
	wg       sync.WaitGroup
	origins  []string
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithBackgroundContext sets the parent context of background jobs.
// Cancelling it stops discovery and enrichment started by the API.
func WithBackgroundContext(ctx context.Context) Option {
	return func(s *Server) { s.bg = ctx }
}

// WithInflight sets the store used to reject concurrent runs of one job.
func WithInflight(c *cache.TTL[string, time.Time]) Option {
	return func(s *Server) { s.inflight = c }
}

// NewServer constructs a Server with middleware and routes.
func NewServer(st store.Store, searcher Searcher, enricher Enricher, opts ...Option) *Server {
	s := &Server{
		store:    st,
		searcher: searcher,
		enricher: enricher,
		bg:       context.Background(),
		origins:  []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}
	if s.inflight == nil {
		s.inflight = cache.NewTTL[string, time.Time](defaultInflightTTL)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Post("/", s.createSearch)
			r.Get("/", s.listJobs)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/enrich", s.enrichJob)
			})
		})
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", s.listLeads)
			r.Get("/stats", s.stats)
			r.Post("/rescore", s.rescore)
			r.Route("/{leadID}", func(r chi.Router) {
				r.Get("/", s.getLead)
				r.Post("/audit", s.auditLead)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until background jobs started by the API have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// runBackground runs fn for jobID unless the job already has work in
// flight. It reports whether fn was started.
func (s *Server) runBackground(jobID string, fn func(ctx context.Context) error) bool {
	if !s.inflight.PutIfAbsent(jobID, time.Now()) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inflight.Delete(jobID)
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("api: background job panicked", zap.String("job_id", jobID), zap.Any("panic", r))
			}
		}()
		if err := fn(s.bg); err != nil {
			zap.L().Error("api: background job failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}
		zap.L().Info("api: background job finished", zap.String("job_id", jobID))
	}()
	return true
}
