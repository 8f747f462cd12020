// Package model defines the lead generation domain types shared by the
// discovery, enrichment, and storage layers.
package model

import (
	"encoding/json"
	"time"
)

// JobStatus represents the current state of a search job.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// EnrichmentStatus tracks a lead through website enrichment.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentCrawling EnrichmentStatus = "crawling"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// CanTransition reports whether moving from s to next is allowed.
// Enrichment only moves forward: pending -> crawling -> {enriched, failed}.
// A pending lead may also be resolved directly when enrichment is reused.
func (s EnrichmentStatus) CanTransition(next EnrichmentStatus) bool {
	switch s {
	case EnrichmentPending:
		return next == EnrichmentCrawling || next == EnrichmentEnriched
	case EnrichmentCrawling:
		return next == EnrichmentEnriched || next == EnrichmentFailed
	default:
		return false
	}
}

// AuditStatus tracks whether a lead's website has been audited.
type AuditStatus string

const (
	AuditPending   AuditStatus = "pending"
	AuditNoWebsite AuditStatus = "no_website"
	AuditComplete  AuditStatus = "complete"
)

// OutreachStatus is maintained by the sales workflow outside this module.
type OutreachStatus string

const (
	OutreachNone       OutreachStatus = "none"
	OutreachContacted  OutreachStatus = "contacted"
	OutreachInProgress OutreachStatus = "in_progress"
	OutreachWon        OutreachStatus = "won"
	OutreachLost       OutreachStatus = "lost"
)

// Tier is the coarse bucket derived from a lead score.
type Tier string

const (
	TierUnscored Tier = "unscored"
	TierCold     Tier = "cold"
	TierWarm     Tier = "warm"
	TierHot      Tier = "hot"
)

// Tiers lists every tier from hottest to coldest.
var Tiers = []Tier{TierHot, TierWarm, TierCold, TierUnscored}

// SearchJob is one discovery run for a query/location pair.
type SearchJob struct {
	ID            string    `json:"id" yaml:"id"`
	Query         string    `json:"query" yaml:"query"`
	Location      string    `json:"location" yaml:"location"`
	RadiusKM      int       `json:"radius_km" yaml:"radius_km"`
	MaxResults    int       `json:"max_results" yaml:"max_results"`
	Status        JobStatus `json:"status" yaml:"status"`
	TotalFound    int       `json:"total_found" yaml:"total_found"`
	EnrichedCount int       `json:"enriched_count" yaml:"enriched_count"`
	ErrorMessage  string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// Lead is a candidate business tracked through discovery, enrichment,
// audit, and scoring.
type Lead struct {
	ID          string  `json:"id" yaml:"id"`
	SearchJobID *string `json:"search_job_id,omitempty" yaml:"search_job_id,omitempty"`
	PlaceID     *string `json:"place_id,omitempty" yaml:"place_id,omitempty"`

	// Business identity from the place provider.
	Name         string          `json:"name" yaml:"name"`
	Address      string          `json:"address,omitempty" yaml:"address,omitempty"`
	City         string          `json:"city,omitempty" yaml:"city,omitempty"`
	State        string          `json:"state,omitempty" yaml:"state,omitempty"`
	Zip          string          `json:"zip,omitempty" yaml:"zip,omitempty"`
	Phone        string          `json:"phone,omitempty" yaml:"phone,omitempty"`
	MapsURL      string          `json:"maps_url,omitempty" yaml:"maps_url,omitempty"`
	Rating       float64         `json:"rating" yaml:"rating"`
	ReviewCount  int             `json:"review_count" yaml:"review_count"`
	Category     string          `json:"category,omitempty" yaml:"category,omitempty"`
	Types        []string        `json:"types,omitempty" yaml:"types,omitempty"`
	Latitude     float64         `json:"latitude" yaml:"latitude"`
	Longitude    float64         `json:"longitude" yaml:"longitude"`
	OpeningHours json.RawMessage `json:"opening_hours,omitempty" yaml:"-"`

	// Website and derived contact data.
	Website       string   `json:"website,omitempty" yaml:"website,omitempty"`
	HasWebsite    bool     `json:"has_website" yaml:"has_website"`
	WebsiteStatus int      `json:"website_status,omitempty" yaml:"website_status,omitempty"`
	Platform      string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Emails        []string `json:"emails" yaml:"emails"`
	Phones        []string `json:"phones" yaml:"phones"`
	Socials       Socials  `json:"socials" yaml:"socials"`
	OwnerName     string   `json:"owner_name,omitempty" yaml:"owner_name,omitempty"`

	// Website audit.
	AuditScore   *int       `json:"audit_score,omitempty" yaml:"audit_score,omitempty"`
	AuditGrade   string     `json:"audit_grade,omitempty" yaml:"audit_grade,omitempty"`
	AuditSummary string     `json:"audit_summary,omitempty" yaml:"audit_summary,omitempty"`
	AuditFixes   []string   `json:"audit_fixes,omitempty" yaml:"audit_fixes,omitempty"`
	AuditFlags   []string   `json:"audit_flags,omitempty" yaml:"audit_flags,omitempty"`
	AuditedAt    *time.Time `json:"audited_at,omitempty" yaml:"audited_at,omitempty"`

	EnrichmentStatus EnrichmentStatus `json:"enrichment_status" yaml:"enrichment_status"`
	AuditStatus      AuditStatus      `json:"audit_status" yaml:"audit_status"`
	OutreachStatus   OutreachStatus   `json:"outreach_status" yaml:"outreach_status"`
	LeadScore        int              `json:"lead_score" yaml:"lead_score"`
	LeadTier         Tier             `json:"lead_tier" yaml:"lead_tier"`

	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tags      []string  `json:"tags" yaml:"tags"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewLead returns a lead with default pipeline statuses.
func NewLead(name string) *Lead {
	return &Lead{
		Name:             name,
		Emails:           []string{},
		Phones:           []string{},
		Tags:             []string{},
		EnrichmentStatus: EnrichmentPending,
		AuditStatus:      AuditPending,
		OutreachStatus:   OutreachNone,
		LeadTier:         TierUnscored,
	}
}

// PlaceKey returns the external place id or "" when absent.
func (l *Lead) PlaceKey() string {
	if l.PlaceID == nil {
		return ""
	}
	return *l.PlaceID
}

// HasPhone reports whether the listing or the crawl produced a phone number.
func (l *Lead) HasPhone() bool {
	return l.Phone != "" || len(l.Phones) > 0
}

// AuditFresh reports whether the lead was audited within window of now.
func (l *Lead) AuditFresh(now time.Time, window time.Duration) bool {
	return l.AuditedAt != nil && now.Sub(*l.AuditedAt) < window
}

// CopyEnrichment copies enrichment and audit output from src. Identity,
// job membership, outreach state, notes, and tags are left untouched.
func (l *Lead) CopyEnrichment(src *Lead) {
	l.Website = src.Website
	l.HasWebsite = src.HasWebsite
	l.WebsiteStatus = src.WebsiteStatus
	l.Platform = src.Platform
	l.Emails = append([]string{}, src.Emails...)
	l.Phones = append([]string{}, src.Phones...)
	l.Socials = src.Socials
	l.OwnerName = src.OwnerName

	if src.AuditScore != nil {
		v := *src.AuditScore
		l.AuditScore = &v
	} else {
		l.AuditScore = nil
	}
	l.AuditGrade = src.AuditGrade
	l.AuditSummary = src.AuditSummary
	l.AuditFixes = append([]string(nil), src.AuditFixes...)
	l.AuditFlags = append([]string(nil), src.AuditFlags...)
	if src.AuditedAt != nil {
		t := *src.AuditedAt
		l.AuditedAt = &t
	} else {
		l.AuditedAt = nil
	}
	l.AuditStatus = src.AuditStatus
	l.EnrichmentStatus = src.EnrichmentStatus
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
