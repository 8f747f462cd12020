package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/leadgen/internal/discovery"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// fakeSearcher creates jobs in the store and records Process calls.
type fakeSearcher struct {
	store store.Store

	mu        sync.Mutex
	processed map[string]bool
	done      chan struct{}
}

func newFakeSearcher(st store.Store) *fakeSearcher {
	return &fakeSearcher{store: st, processed: map[string]bool{}, done: make(chan struct{}, 8)}
}

func (f *fakeSearcher) CreateSearch(ctx context.Context, req discovery.SearchRequest) (*model.SearchJob, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, discovery.ErrInvalidRequest
	}
	now := time.Now().UTC()
	job := &model.SearchJob{
		ID:         "job-" + req.Query,
		Query:      req.Query,
		Location:   req.Location,
		RadiusKM:   req.RadiusKM,
		MaxResults: req.MaxResults,
		Status:     model.JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := f.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (f *fakeSearcher) Process(_ context.Context, jobID string, withEnrichment bool) error {
	f.mu.Lock()
	f.processed[jobID] = withEnrichment
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func (f *fakeSearcher) enrichmentFor(jobID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.processed[jobID]
	return v, ok
}

// fakeEnricher blocks RunJob until release is closed.
type fakeEnricher struct {
	store   store.Store
	release chan struct{}
	started chan string

	mu      sync.Mutex
	runs    int
	changed int
	err     error
}

func newFakeEnricher(st store.Store) *fakeEnricher {
	return &fakeEnricher{store: st, release: make(chan struct{}), started: make(chan string, 8)}
}

func (f *fakeEnricher) RunJob(ctx context.Context, jobID string) (*enrich.Summary, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	f.started <- jobID
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &enrich.Summary{JobID: jobID}, nil
}

func (f *fakeEnricher) AuditLead(ctx context.Context, leadID string) (*model.Lead, error) {
	if f.err != nil {
		return nil, f.err
	}
	lead, err := f.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	score := 72
	lead.AuditScore = &score
	lead.AuditStatus = model.AuditComplete
	return lead, nil
}

func (f *fakeEnricher) RescoreAll(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.changed, nil
}

func (f *fakeEnricher) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}
