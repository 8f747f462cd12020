// Package store persists search jobs and leads. SQLite, Postgres, and an
// in-memory backend share one interface so the pipeline never knows which
// one it is talking to.
package store

import (
	"context"
	"errors"

	"github.com/sells-group/leadgen/internal/model"
)

// ErrNotFound is returned when a job or lead does not exist.
var ErrNotFound = errors.New("store: not found")

// LeadFilter specifies criteria for listing leads. Zero values mean "any".
type LeadFilter struct {
	JobID            string                 `json:"job_id,omitempty"`
	PlaceID          string                 `json:"place_id,omitempty"`
	Tier             model.Tier             `json:"tier,omitempty"`
	EnrichmentStatus model.EnrichmentStatus `json:"enrichment_status,omitempty"`
	OutreachStatus   model.OutreachStatus   `json:"outreach_status,omitempty"`
	Category         string                 `json:"category,omitempty"`
	City             string                 `json:"city,omitempty"`
	State            string                 `json:"state,omitempty"`
	MinScore         int                    `json:"min_score,omitempty"`
	Sort             SortKey                `json:"sort,omitempty"`
	Dir              SortDir                `json:"dir,omitempty"`
	Limit            int                    `json:"limit,omitempty"`
	Offset           int                    `json:"offset,omitempty"`
}

// DefaultLeadLimit caps ListLeads when the filter leaves Limit unset.
const DefaultLeadLimit = 100

func (f LeadFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultLeadLimit
	}
	return f.Limit
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// ScoreUpdate is one recomputed score/tier pair.
type ScoreUpdate struct {
	LeadID string
	Score  int
	Tier   model.Tier
}

// CategoryCount is one row of the top-categories breakdown.
type CategoryCount struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

// Stats aggregates lead counts, optionally scoped to a single job.
type Stats struct {
	TotalLeads     int             `json:"total_leads" yaml:"total_leads"`
	Enriched       int             `json:"enriched" yaml:"enriched"`
	WithWebsite    int             `json:"with_website" yaml:"with_website"`
	WithoutWebsite int             `json:"without_website" yaml:"without_website"`
	Hot            int             `json:"hot" yaml:"hot"`
	Warm           int             `json:"warm" yaml:"warm"`
	Cold           int             `json:"cold" yaml:"cold"`
	Unscored       int             `json:"unscored" yaml:"unscored"`
	Contacted      int             `json:"contacted" yaml:"contacted"`
	Won            int             `json:"won" yaml:"won"`
	Lost           int             `json:"lost" yaml:"lost"`
	AvgLeadScore   float64         `json:"avg_lead_score" yaml:"avg_lead_score"`
	TopCategories  []CategoryCount `json:"top_categories" yaml:"top_categories"`
}

// topCategoryLimit is how many categories Stats reports.
const topCategoryLimit = 10

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.SearchJob) error
	GetJob(ctx context.Context, id string) (*model.SearchJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.SearchJob, error)
	UpdateJob(ctx context.Context, job *model.SearchJob) error

	// Leads
	InsertLead(ctx context.Context, lead *model.Lead) (bool, error)
	PlaceIDExists(ctx context.Context, placeID string) (bool, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, int, error)
	ListJobLeadIDs(ctx context.Context, jobID string, status model.EnrichmentStatus) ([]string, error)
	UpdateScores(ctx context.Context, updates []ScoreUpdate) error
	Stats(ctx context.Context, jobID string) (*Stats, error)

	// Begin opens a unit of work for a single lead transition.
	Begin(ctx context.Context) (UnitOfWork, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// UnitOfWork is a transaction scoped to one lead. It is never shared across
// goroutines. Rollback after Commit is a no-op, so callers can always defer it.
type UnitOfWork interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	// FindEnrichedTwin returns another enriched lead for the same business:
	// first by place id, then by identical website URL. It returns nil, nil
	// when there is none.
	FindEnrichedTwin(ctx context.Context, placeID, website, excludeID string) (*model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
