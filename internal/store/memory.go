package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// MemoryStore implements Store in process memory. It backs tests and the
// `--store memory` demo mode; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]*model.SearchJob
	leads   map[string]*model.Lead
	byPlace map[string]string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*model.SearchJob),
		leads:   make(map[string]*model.Lead),
		byPlace: make(map[string]string),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

// --- Jobs ---

func (s *MemoryStore) CreateJob(_ context.Context, job *model.SearchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return eris.Errorf("memory: job %s already exists", job.ID)
	}
	j := *job
	s.jobs[job.ID] = &j
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.SearchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	out := *j
	return &out, nil
}

func (s *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]model.SearchJob, error) {
	s.mu.RLock()
	jobs := make([]model.SearchJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		jobs = append(jobs, *j)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		}
		return jobs[a].ID < jobs[b].ID
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	return page(jobs, filter.Offset, limit), nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, job *model.SearchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[job.ID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "job %s", job.ID)
	}
	job.UpdatedAt = time.Now().UTC()
	cur.Status = job.Status
	cur.TotalFound = job.TotalFound
	cur.EnrichedCount = job.EnrichedCount
	cur.ErrorMessage = job.ErrorMessage
	cur.UpdatedAt = job.UpdatedAt
	return nil
}

// --- Leads ---

func (s *MemoryStore) InsertLead(_ context.Context, lead *model.Lead) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leads[lead.ID]; ok {
		return false, eris.Errorf("memory: lead %s already exists", lead.ID)
	}
	if pid := lead.PlaceKey(); pid != "" {
		if _, ok := s.byPlace[pid]; ok {
			return false, nil
		}
		s.byPlace[pid] = lead.ID
	}
	s.leads[lead.ID] = cloneLead(lead)
	return true, nil
}

func (s *MemoryStore) PlaceIDExists(_ context.Context, placeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byPlace[placeID]
	return ok, nil
}

func (s *MemoryStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLeadLocked(id)
}

func (s *MemoryStore) getLeadLocked(id string) (*model.Lead, error) {
	l, ok := s.leads[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	return cloneLead(l), nil
}

func (s *MemoryStore) ListLeads(_ context.Context, filter LeadFilter) ([]model.Lead, int, error) {
	s.mu.RLock()
	matched := make([]*model.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if matchLead(l, filter) {
			matched = append(matched, cloneLead(l))
		}
	}
	s.mu.RUnlock()

	less := lessFunc(filter.Sort, filter.Dir)
	sort.Slice(matched, func(a, b int) bool { return less(matched[a], matched[b]) })

	window := page(matched, filter.Offset, filter.limit())
	leads := make([]model.Lead, len(window))
	for i, l := range window {
		leads[i] = *l
	}
	return leads, len(matched), nil
}

func matchLead(l *model.Lead, f LeadFilter) bool {
	switch {
	case f.JobID != "" && (l.SearchJobID == nil || *l.SearchJobID != f.JobID):
		return false
	case f.PlaceID != "" && l.PlaceKey() != f.PlaceID:
		return false
	case f.Tier != "" && l.LeadTier != f.Tier:
		return false
	case f.EnrichmentStatus != "" && l.EnrichmentStatus != f.EnrichmentStatus:
		return false
	case f.OutreachStatus != "" && l.OutreachStatus != f.OutreachStatus:
		return false
	case f.Category != "" && l.Category != f.Category:
		return false
	case f.City != "" && !strings.EqualFold(l.City, f.City):
		return false
	case f.State != "" && !strings.EqualFold(l.State, f.State):
		return false
	case f.MinScore > 0 && l.LeadScore < f.MinScore:
		return false
	}
	return true
}

func (s *MemoryStore) ListJobLeadIDs(_ context.Context, jobID string, status model.EnrichmentStatus) ([]string, error) {
	s.mu.RLock()
	var matched []*model.Lead
	for _, l := range s.leads {
		if l.SearchJobID == nil || *l.SearchJobID != jobID {
			continue
		}
		if status != "" && l.EnrichmentStatus != status {
			continue
		}
		matched = append(matched, l)
	}
	ids := make([]string, 0, len(matched))
	sort.Slice(matched, func(a, b int) bool {
		if !matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].CreatedAt.Before(matched[b].CreatedAt)
		}
		return matched[a].ID < matched[b].ID
	})
	for _, l := range matched {
		ids = append(ids, l.ID)
	}
	s.mu.RUnlock()
	return ids, nil
}

func (s *MemoryStore) UpdateScores(_ context.Context, updates []ScoreUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, u := range updates {
		if l, ok := s.leads[u.LeadID]; ok {
			l.LeadScore = u.Score
			l.LeadTier = u.Tier
			l.UpdatedAt = now
		}
	}
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, jobID string) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{}
	cats := map[string]int{}
	var scoreSum int
	for _, l := range s.leads {
		if jobID != "" && (l.SearchJobID == nil || *l.SearchJobID != jobID) {
			continue
		}
		st.TotalLeads++
		scoreSum += l.LeadScore
		if l.EnrichmentStatus == model.EnrichmentEnriched {
			st.Enriched++
		}
		if l.HasWebsite {
			st.WithWebsite++
		}
		switch l.LeadTier {
		case model.TierHot:
			st.Hot++
		case model.TierWarm:
			st.Warm++
		case model.TierCold:
			st.Cold++
		}
		switch l.OutreachStatus {
		case model.OutreachContacted, model.OutreachInProgress:
			st.Contacted++
		case model.OutreachWon:
			st.Won++
		case model.OutreachLost:
			st.Lost++
		}
		if l.Category != "" {
			cats[l.Category]++
		}
	}
	if st.TotalLeads > 0 {
		st.AvgLeadScore = float64(scoreSum) / float64(st.TotalLeads)
	}
	for c, n := range cats {
		st.TopCategories = append(st.TopCategories, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(st.TopCategories, func(a, b int) bool {
		ca, cb := st.TopCategories[a], st.TopCategories[b]
		if ca.Count != cb.Count {
			return ca.Count > cb.Count
		}
		return ca.Category < cb.Category
	})
	if len(st.TopCategories) > topCategoryLimit {
		st.TopCategories = st.TopCategories[:topCategoryLimit]
	}
	finishStats(st)
	return st, nil
}

// --- Unit of work ---

// Begin returns a unit that buffers lead writes and applies them on Commit.
func (s *MemoryStore) Begin(context.Context) (UnitOfWork, error) {
	return &memoryUnit{s: s, pending: map[string]*model.Lead{}}, nil
}

type memoryUnit struct {
	s       *MemoryStore
	pending map[string]*model.Lead
	done    bool
}

func (u *memoryUnit) GetLead(_ context.Context, id string) (*model.Lead, error) {
	if l, ok := u.pending[id]; ok {
		return cloneLead(l), nil
	}
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	return u.s.getLeadLocked(id)
}

func (u *memoryUnit) FindEnrichedTwin(_ context.Context, placeID, website, excludeID string) (*model.Lead, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, key := range twinKeys(placeID, website) {
		var best *model.Lead
		for _, l := range u.s.leads {
			if l.ID == excludeID || l.EnrichmentStatus != model.EnrichmentEnriched {
				continue
			}
			v := l.Website
			if key.column == "place_id" {
				v = l.PlaceKey()
			}
			if v != key.value {
				continue
			}
			if best == nil || l.UpdatedAt.After(best.UpdatedAt) {
				best = l
			}
		}
		if best != nil {
			return cloneLead(best), nil
		}
	}
	return nil, nil
}

func (u *memoryUnit) UpdateLead(_ context.Context, lead *model.Lead) error {
	if u.done {
		return eris.New("memory: unit of work already finished")
	}
	u.s.mu.RLock()
	_, ok := u.s.leads[lead.ID]
	u.s.mu.RUnlock()
	if !ok {
		return eris.Wrapf(ErrNotFound, "lead %s", lead.ID)
	}
	lead.UpdatedAt = time.Now().UTC()
	u.pending[lead.ID] = cloneLead(lead)
	return nil
}

func (u *memoryUnit) Commit(context.Context) error {
	if u.done {
		return eris.New("memory: unit of work already finished")
	}
	u.done = true
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for id, l := range u.pending {
		cur, ok := u.s.leads[id]
		if !ok {
			continue
		}
		// place_id and created_at are immutable after insert.
		l.PlaceID = cur.PlaceID
		l.CreatedAt = cur.CreatedAt
		u.s.leads[id] = l
	}
	return nil
}

func (u *memoryUnit) Rollback(context.Context) error {
	u.done = true
	u.pending = nil
	return nil
}

func cloneLead(l *model.Lead) *model.Lead {
	c := *l
	c.SearchJobID = clonePtr(l.SearchJobID)
	c.PlaceID = clonePtr(l.PlaceID)
	c.AuditScore = clonePtr(l.AuditScore)
	c.AuditedAt = clonePtr(l.AuditedAt)
	c.Types = append([]string(nil), l.Types...)
	c.Emails = append([]string{}, l.Emails...)
	c.Phones = append([]string{}, l.Phones...)
	c.Tags = append([]string{}, l.Tags...)
	c.AuditFixes = append([]string(nil), l.AuditFixes...)
	c.AuditFlags = append([]string(nil), l.AuditFlags...)
	c.OpeningHours = append([]byte(nil), l.OpeningHours...)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
