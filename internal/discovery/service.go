package discovery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/metrics"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// ErrInvalidRequest is returned when a search request fails validation.
var ErrInvalidRequest = errors.New("discovery: invalid request")

const (
	// MaxResultsLimit caps how many candidates one job may request.
	MaxResultsLimit = 200

	defaultMaxResults = 60
	defaultRadiusKM   = 25
)

// SearchRequest describes a new search job.
type SearchRequest struct {
	Query      string `json:"query"`
	Location   string `json:"location"`
	RadiusKM   int    `json:"radius_km"`
	MaxResults int    `json:"max_results"`
}

// Enricher runs website enrichment for every pending lead of a job.
type Enricher interface {
	RunJob(ctx context.Context, jobID string) (*enrich.Summary, error)
}

// Service creates search jobs and fills them with leads.
type Service struct {
	store      store.Store
	provider   Provider
	enricher   Enricher
	maxResults int
	radiusKM   int
	now        func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEnricher sets the enricher used by Run and Process.
func WithEnricher(e Enricher) ServiceOption {
	return func(s *Service) { s.enricher = e }
}

// WithDefaults sets the max results and radius applied when a request omits them.
func WithDefaults(maxResults, radiusKM int) ServiceOption {
	return func(s *Service) {
		if maxResults > 0 {
			s.maxResults = min(maxResults, MaxResultsLimit)
		}
		if radiusKM > 0 {
			s.radiusKM = radiusKM
		}
	}
}

// NewService creates a discovery Service.
func NewService(st store.Store, p Provider, opts ...ServiceOption) *Service {
	s := &Service{
		store:      st,
		provider:   p,
		maxResults: defaultMaxResults,
		radiusKM:   defaultRadiusKM,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) normalize(req SearchRequest) (SearchRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Location = strings.TrimSpace(req.Location)
	if req.Query == "" {
		return req, eris.Wrap(ErrInvalidRequest, "query is required")
	}
	if req.Location == "" {
		return req, eris.Wrap(ErrInvalidRequest, "location is required")
	}
	if req.RadiusKM < 0 || req.MaxResults < 0 {
		return req, eris.Wrap(ErrInvalidRequest, "radius_km and max_results must not be negative")
	}
	if req.MaxResults > MaxResultsLimit {
		return req, eris.Wrapf(ErrInvalidRequest, "max_results must be at most %d", MaxResultsLimit)
	}
	if req.RadiusKM == 0 {
		req.RadiusKM = s.radiusKM
	}
	if req.MaxResults == 0 {
		req.MaxResults = s.maxResults
	}
	return req, nil
}

// CreateSearch validates req and stores a pending job. Discovery is not
// started; call Process or Discover with the returned job's id.
func (s *Service) CreateSearch(ctx context.Context, req SearchRequest) (*model.SearchJob, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	job := &model.SearchJob{
		ID:         uuid.NewString(),
		Query:      req.Query,
		Location:   req.Location,
		RadiusKM:   req.RadiusKM,
		MaxResults: req.MaxResults,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "discovery: create job")
	}
	zap.L().Info("discovery: job created",
		zap.String("job_id", job.ID),
		zap.String("query", job.Query),
		zap.String("location", job.Location),
		zap.Int("max_results", job.MaxResults),
	)
	return job, nil
}

// Discover searches the provider for the job's query and inserts every
// candidate whose place id is not already known. The job ends complete
// with total_found set to the number of new leads, or failed when the
// store cannot be written.
func (s *Service) Discover(ctx context.Context, jobID string) (*model.SearchJob, error) {
	log := zap.L().With(zap.String("job_id", jobID), zap.String("provider", s.provider.Name()))

	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: get job %s", jobID)
	}

	job.Status = model.JobStatusRunning
	job.ErrorMessage = ""
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return s.fail(ctx, job, eris.Wrap(err, "discovery: mark running"))
	}

	candidates := s.provider.Search(ctx, job.Query, job.Location, job.MaxResults)
	log.Info("discovery: candidates returned", zap.Int("count", len(candidates)))

	var inserted, skipped int
	seen := make(map[string]struct{}, len(candidates))
	now := s.now()
	for _, c := range candidates {
		if c.PlaceID != "" {
			if _, dup := seen[c.PlaceID]; dup {
				skipped++
				continue
			}
			seen[c.PlaceID] = struct{}{}

			exists, err := s.store.PlaceIDExists(ctx, c.PlaceID)
			if err != nil {
				return s.fail(ctx, job, eris.Wrapf(err, "discovery: check place %s", c.PlaceID))
			}
			if exists {
				skipped++
				continue
			}
		}

		ok, err := s.store.InsertLead(ctx, c.ToLead(job.ID, now))
		if err != nil {
			return s.fail(ctx, job, eris.Wrapf(err, "discovery: insert lead %q", c.Name))
		}
		if !ok {
			skipped++
			continue
		}
		inserted++
	}

	job.TotalFound = inserted
	job.Status = model.JobStatusComplete
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return s.fail(ctx, job, eris.Wrap(err, "discovery: mark complete"))
	}
	metrics.ObserveJob("discovery", string(job.Status))

	log.Info("discovery: job complete", zap.Int("inserted", inserted), zap.Int("skipped", skipped))
	return job, nil
}

// fail records cause on the job and returns it.
func (s *Service) fail(ctx context.Context, job *model.SearchJob, cause error) (*model.SearchJob, error) {
	job.Status = model.JobStatusFailed
	job.ErrorMessage = cause.Error()
	if err := s.store.UpdateJob(context.WithoutCancel(ctx), job); err != nil {
		zap.L().Error("discovery: mark job failed",
			zap.String("job_id", job.ID), zap.NamedError("cause", cause), zap.Error(err))
	}
	metrics.ObserveJob("discovery", string(job.Status))
	return job, cause
}

// Process runs discovery for an existing job and, when withEnrichment is set and
// an enricher is configured, enrichment afterwards.
func (s *Service) Process(ctx context.Context, jobID string, withEnrichment bool) error {
	job, err := s.Discover(ctx, jobID)
	if err != nil {
		return err
	}
	if !withEnrichment || s.enricher == nil || job.Status != model.JobStatusComplete {
		return nil
	}
	if _, err := s.enricher.RunJob(ctx, jobID); err != nil {
		return eris.Wrapf(err, "discovery: enrich job %s", jobID)
	}
	return nil
}

// Run creates a job, discovers its leads, optionally enriches them, and
// returns the job as last stored.
func (s *Service) Run(ctx context.Context, req SearchRequest, withEnrichment bool) (*model.SearchJob, error) {
	job, err := s.CreateSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.Process(ctx, job.ID, withEnrichment); err != nil {
		if final, gerr := s.store.GetJob(context.WithoutCancel(ctx), job.ID); gerr == nil {
			return final, err
		}
		return job, err
	}
	final, err := s.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: reload job %s", job.ID)
	}
	return final, nil
}
