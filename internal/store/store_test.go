package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

// backends runs each test against every Store implementation that works
// without external services.
var backends = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store { return NewMemory() },
	"sqlite": func(t *testing.T) Store { return newTestSQLiteStore(t) },
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func forEachBackend(t *testing.T, fn func(t *testing.T, st Store)) {
	for name, mk := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, mk(t))
		})
	}
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newJob(t *testing.T, st Store) *model.SearchJob {
	t.Helper()
	job := &model.SearchJob{
		ID:         uuid.NewString(),
		Query:      "plumbers",
		Location:   "Austin, TX",
		RadiusKM:   25,
		MaxResults: 60,
		Status:     model.JobStatusPending,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	require.NoError(t, st.CreateJob(context.Background(), job))
	return job
}

func newStoredLead(t *testing.T, st Store, jobID, placeID, name string, mutate ...func(*model.Lead)) *model.Lead {
	t.Helper()
	l := model.NewLead(name)
	l.ID = uuid.NewString()
	l.SearchJobID = model.StringPtr(jobID)
	l.PlaceID = model.StringPtr(placeID)
	l.CreatedAt = baseTime
	l.UpdatedAt = baseTime
	for _, m := range mutate {
		m(l)
	}
	ok, err := st.InsertLead(context.Background(), l)
	require.NoError(t, err)
	require.True(t, ok)
	return l
}

func TestStore_JobLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)

		got, err := st.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "plumbers", got.Query)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.True(t, baseTime.Equal(got.CreatedAt))

		job.Status = model.JobStatusComplete
		job.TotalFound = 12
		job.EnrichedCount = 10
		require.NoError(t, st.UpdateJob(ctx, job))

		got, err = st.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusComplete, got.Status)
		assert.Equal(t, 12, got.TotalFound)
		assert.Equal(t, 10, got.EnrichedCount)
	})
}

func TestStore_JobNotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		_, err := st.GetJob(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))

		err = st.UpdateJob(ctx, &model.SearchJob{ID: "missing", Status: model.JobStatusFailed})
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_ListJobs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		older := newJob(t, st)
		newer := &model.SearchJob{
			ID: uuid.NewString(), Query: "dentists", Location: "Boise, ID",
			Status: model.JobStatusComplete, CreatedAt: baseTime.Add(time.Hour), UpdatedAt: baseTime,
		}
		require.NoError(t, st.CreateJob(ctx, newer))

		jobs, err := st.ListJobs(ctx, JobFilter{})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, newer.ID, jobs[0].ID)
		assert.Equal(t, older.ID, jobs[1].ID)

		jobs, err = st.ListJobs(ctx, JobFilter{Status: model.JobStatusPending})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, older.ID, jobs[0].ID)
	})
}

func TestStore_InsertLead_PlaceIDDedup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		newStoredLead(t, st, job.ID, "place-1", "Acme Plumbing")

		dup := model.NewLead("Acme Plumbing Again")
		dup.ID = uuid.NewString()
		dup.SearchJobID = model.StringPtr(job.ID)
		dup.PlaceID = model.StringPtr("place-1")
		dup.CreatedAt, dup.UpdatedAt = baseTime, baseTime

		ok, err := st.InsertLead(ctx, dup)
		require.NoError(t, err)
		assert.False(t, ok)

		exists, err := st.PlaceIDExists(ctx, "place-1")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = st.PlaceIDExists(ctx, "place-2")
		require.NoError(t, err)
		assert.False(t, exists)

		_, total, err := st.ListLeads(ctx, LeadFilter{JobID: job.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestStore_InsertLead_NullPlaceIDsDoNotCollide(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		job := newJob(t, st)
		newStoredLead(t, st, job.ID, "", "Manual One")
		newStoredLead(t, st, job.ID, "", "Manual Two")

		_, total, err := st.ListLeads(context.Background(), LeadFilter{JobID: job.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})
}

func TestStore_LeadRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		audited := baseTime.Add(-time.Hour)
		score := 72
		l := newStoredLead(t, st, job.ID, "place-rt", "Round Trip LLC", func(l *model.Lead) {
			l.Website = "https://roundtrip.example"
			l.HasWebsite = true
			l.Rating = 4.6
			l.ReviewCount = 88
			l.Types = []string{"plumber", "point_of_interest"}
			l.Emails = []string{"info@roundtrip.example"}
			l.Socials = model.Socials{Facebook: "https://facebook.com/roundtrip"}
			l.AuditScore = &score
			l.AuditFixes = []string{"Add SSL"}
			l.AuditedAt = &audited
			l.OpeningHours = []byte(`{"openNow":true}`)
		})

		got, err := st.GetLead(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, l.Name, got.Name)
		assert.Equal(t, "place-rt", got.PlaceKey())
		assert.Equal(t, job.ID, *got.SearchJobID)
		assert.True(t, got.HasWebsite)
		assert.InDelta(t, 4.6, got.Rating, 0.0001)
		assert.Equal(t, []string{"plumber", "point_of_interest"}, got.Types)
		assert.Equal(t, []string{"info@roundtrip.example"}, got.Emails)
		assert.Equal(t, []string{}, got.Phones)
		assert.Equal(t, "https://facebook.com/roundtrip", got.Socials.Facebook)
		require.NotNil(t, got.AuditScore)
		assert.Equal(t, 72, *got.AuditScore)
		require.NotNil(t, got.AuditedAt)
		assert.True(t, audited.Equal(*got.AuditedAt))
		assert.JSONEq(t, `{"openNow":true}`, string(got.OpeningHours))
		assert.Equal(t, model.EnrichmentPending, got.EnrichmentStatus)
		assert.Equal(t, model.TierUnscored, got.LeadTier)
	})
}

func TestStore_GetLead_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		_, err := st.GetLead(context.Background(), "nope")
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_ListLeads_FilterSortPage(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		other := newJob(t, st)

		for i, row := range []struct {
			name  string
			score int
			tier  model.Tier
			city  string
		}{
			{"Alpha", 70, model.TierHot, "Austin"},
			{"Bravo", 40, model.TierWarm, "Austin"},
			{"Charlie", 20, model.TierCold, "Dallas"},
			{"Delta", 65, model.TierHot, "austin"},
		} {
			newStoredLead(t, st, job.ID, fmt.Sprintf("p-%d", i), row.name, func(l *model.Lead) {
				l.LeadScore = row.score
				l.LeadTier = row.tier
				l.City = row.city
				l.Category = "plumber"
			})
		}
		newStoredLead(t, st, other.ID, "p-other", "Echo", func(l *model.Lead) { l.LeadScore = 99 })

		leads, total, err := st.ListLeads(ctx, LeadFilter{JobID: job.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, leads, 4)
		assert.Equal(t, []string{"Alpha", "Delta", "Bravo", "Charlie"}, names(leads))

		leads, _, err = st.ListLeads(ctx, LeadFilter{JobID: job.ID, Sort: SortName, Dir: SortAsc})
		require.NoError(t, err)
		assert.Equal(t, []string{"Alpha", "Bravo", "Charlie", "Delta"}, names(leads))

		leads, total, err = st.ListLeads(ctx, LeadFilter{Tier: model.TierHot, City: "AUSTIN"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.ElementsMatch(t, []string{"Alpha", "Delta"}, names(leads))

		leads, total, err = st.ListLeads(ctx, LeadFilter{MinScore: 60})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, []string{"Echo", "Alpha", "Delta"}, names(leads))

		leads, total, err = st.ListLeads(ctx, LeadFilter{JobID: job.ID, Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"Delta", "Bravo"}, names(leads))
	})
}

func TestStore_ListLeads_AuditScoreSortPutsUnauditedLast(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		job := newJob(t, st)
		s40, s90 := 40, 90
		newStoredLead(t, st, job.ID, "a", "Low", func(l *model.Lead) { l.AuditScore = &s40 })
		newStoredLead(t, st, job.ID, "b", "None")
		newStoredLead(t, st, job.ID, "c", "High", func(l *model.Lead) { l.AuditScore = &s90 })

		leads, _, err := st.ListLeads(context.Background(), LeadFilter{Sort: SortAuditScore})
		require.NoError(t, err)
		assert.Equal(t, []string{"High", "Low", "None"}, names(leads))
	})
}

func TestStore_ListJobLeadIDs(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		first := newStoredLead(t, st, job.ID, "x1", "First")
		second := newStoredLead(t, st, job.ID, "x2", "Second", func(l *model.Lead) {
			l.CreatedAt = baseTime.Add(time.Minute)
		})
		newStoredLead(t, st, job.ID, "x3", "Done", func(l *model.Lead) {
			l.EnrichmentStatus = model.EnrichmentEnriched
		})

		ids, err := st.ListJobLeadIDs(ctx, job.ID, model.EnrichmentPending)
		require.NoError(t, err)
		assert.Equal(t, []string{first.ID, second.ID}, ids)

		ids, err = st.ListJobLeadIDs(ctx, job.ID, "")
		require.NoError(t, err)
		assert.Len(t, ids, 3)

		ids, err = st.ListJobLeadIDs(ctx, "unknown-job", "")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestStore_UnitOfWork_CommitAndRollback(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		l := newStoredLead(t, st, job.ID, "uow", "Unit Co")

		uow, err := st.Begin(ctx)
		require.NoError(t, err)
		got, err := uow.GetLead(ctx, l.ID)
		require.NoError(t, err)
		got.EnrichmentStatus = model.EnrichmentCrawling
		require.NoError(t, uow.UpdateLead(ctx, got))
		require.NoError(t, uow.Rollback(ctx))

		after, err := st.GetLead(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, model.EnrichmentPending, after.EnrichmentStatus)

		uow, err = st.Begin(ctx)
		require.NoError(t, err)
		got, err = uow.GetLead(ctx, l.ID)
		require.NoError(t, err)
		got.EnrichmentStatus = model.EnrichmentEnriched
		got.Emails = []string{"hello@unit.example"}
		got.LeadScore = 45
		got.LeadTier = model.TierWarm
		require.NoError(t, uow.UpdateLead(ctx, got))
		require.NoError(t, uow.Commit(ctx))
		require.NoError(t, uow.Rollback(ctx))

		after, err = st.GetLead(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, model.EnrichmentEnriched, after.EnrichmentStatus)
		assert.Equal(t, []string{"hello@unit.example"}, after.Emails)
		assert.Equal(t, 45, after.LeadScore)
		assert.Equal(t, "uow", after.PlaceKey())
	})
}

func TestStore_UnitOfWork_UpdateMissingLead(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		uow, err := st.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx) //nolint:errcheck

		ghost := model.NewLead("Ghost")
		ghost.ID = "ghost"
		err = uow.UpdateLead(ctx, ghost)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestStore_FindEnrichedTwin(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		enriched := newStoredLead(t, st, job.ID, "chain-hq", "Chain HQ", func(l *model.Lead) {
			l.Website = "https://chain.example"
			l.EnrichmentStatus = model.EnrichmentEnriched
		})
		newStoredLead(t, st, job.ID, "pending-site", "Pending Site", func(l *model.Lead) {
			l.Website = "https://pending.example"
		})
		branch := newStoredLead(t, st, job.ID, "chain-branch", "Chain Branch", func(l *model.Lead) {
			l.Website = "https://chain.example"
		})

		uow, err := st.Begin(ctx)
		require.NoError(t, err)
		defer uow.Rollback(ctx) //nolint:errcheck

		twin, err := uow.FindEnrichedTwin(ctx, "chain-hq", "", branch.ID)
		require.NoError(t, err)
		require.NotNil(t, twin)
		assert.Equal(t, enriched.ID, twin.ID)

		twin, err = uow.FindEnrichedTwin(ctx, branch.PlaceKey(), branch.Website, branch.ID)
		require.NoError(t, err)
		require.NotNil(t, twin)
		assert.Equal(t, enriched.ID, twin.ID)

		twin, err = uow.FindEnrichedTwin(ctx, "chain-hq", "", enriched.ID)
		require.NoError(t, err)
		assert.Nil(t, twin)

		twin, err = uow.FindEnrichedTwin(ctx, "", "https://pending.example", branch.ID)
		require.NoError(t, err)
		assert.Nil(t, twin)

		twin, err = uow.FindEnrichedTwin(ctx, "", "", branch.ID)
		require.NoError(t, err)
		assert.Nil(t, twin)
	})
}

func TestStore_UpdateScores(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		a := newStoredLead(t, st, job.ID, "s1", "A")
		b := newStoredLead(t, st, job.ID, "s2", "B")

		require.NoError(t, st.UpdateScores(ctx, nil))
		require.NoError(t, st.UpdateScores(ctx, []ScoreUpdate{
			{LeadID: a.ID, Score: 65, Tier: model.TierHot},
			{LeadID: b.ID, Score: 20, Tier: model.TierCold},
		}))

		got, err := st.GetLead(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 65, got.LeadScore)
		assert.Equal(t, model.TierHot, got.LeadTier)

		got, err = st.GetLead(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, got.LeadScore)
		assert.Equal(t, model.TierCold, got.LeadTier)
	})
}

func TestStore_Stats(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		ctx := context.Background()
		job := newJob(t, st)
		other := newJob(t, st)

		newStoredLead(t, st, job.ID, "st1", "One", func(l *model.Lead) {
			l.HasWebsite = true
			l.EnrichmentStatus = model.EnrichmentEnriched
			l.LeadScore, l.LeadTier = 70, model.TierHot
			l.Category = "plumber"
			l.OutreachStatus = model.OutreachWon
		})
		newStoredLead(t, st, job.ID, "st2", "Two", func(l *model.Lead) {
			l.LeadScore, l.LeadTier = 40, model.TierWarm
			l.Category = "plumber"
			l.OutreachStatus = model.OutreachContacted
		})
		newStoredLead(t, st, job.ID, "st3", "Three", func(l *model.Lead) {
			l.HasWebsite = true
			l.LeadScore, l.LeadTier = 10, model.TierUnscored
			l.Category = "electrician"
		})
		newStoredLead(t, st, other.ID, "st4", "Four", func(l *model.Lead) {
			l.LeadScore, l.LeadTier = 20, model.TierCold
			l.Category = "roofer"
		})

		s, err := st.Stats(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, s.TotalLeads)
		assert.Equal(t, 1, s.Enriched)
		assert.Equal(t, 2, s.WithWebsite)
		assert.Equal(t, 1, s.WithoutWebsite)
		assert.Equal(t, 1, s.Hot)
		assert.Equal(t, 1, s.Warm)
		assert.Equal(t, 0, s.Cold)
		assert.Equal(t, 1, s.Unscored)
		assert.Equal(t, 1, s.Contacted)
		assert.Equal(t, 1, s.Won)
		assert.InDelta(t, 40.0, s.AvgLeadScore, 0.001)
		assert.Equal(t, []CategoryCount{{"plumber", 2}, {"electrician", 1}}, s.TopCategories)

		all, err := st.Stats(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 4, all.TotalLeads)
		assert.Equal(t, 1, all.Cold)
		assert.Len(t, all.TopCategories, 3)
	})
}

func TestStore_Stats_Empty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, st Store) {
		s, err := st.Stats(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, 0, s.TotalLeads)
		assert.Zero(t, s.AvgLeadScore)
		assert.NotNil(t, s.TopCategories)
	})
}

func names(leads []model.Lead) []string {
	out := make([]string, len(leads))
	for i, l := range leads {
		out[i] = l.Name
	}
	return out
}
