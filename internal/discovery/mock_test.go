package discovery

import (
	"context"
	"sync"

	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// mockProvider returns a fixed candidate list.
type mockProvider struct {
	candidates []Candidate

	mu    sync.Mutex
	calls int
	last  struct {
		query, location string
		max             int
	}
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Search(_ context.Context, query, location string, maxResults int) []Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last.query, m.last.location, m.last.max = query, location, maxResults
	if len(m.candidates) > maxResults {
		return m.candidates[:maxResults]
	}
	return m.candidates
}

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*store.MemoryStore
	insertErr error
	existsErr error
}

func (f *failingStore) InsertLead(ctx context.Context, l *model.Lead) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	return f.MemoryStore.InsertLead(ctx, l)
}

func (f *failingStore) PlaceIDExists(ctx context.Context, placeID string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.MemoryStore.PlaceIDExists(ctx, placeID)
}

// mockEnricher records which jobs were enriched.
type mockEnricher struct {
	mu   sync.Mutex
	jobs []string
	err  error
}

func (m *mockEnricher) RunJob(_ context.Context, jobID string) (*enrich.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, jobID)
	if m.err != nil {
		return nil, m.err
	}
	return &enrich.Summary{JobID: jobID}, nil
}
