// Package discovery finds candidate businesses through a place search
// provider and persists them as pending leads.
package discovery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/google"
)

// Candidate is a business returned by a place search provider.
type Candidate struct {
	PlaceID      string          `json:"place_id"`
	Name         string          `json:"name"`
	Address      string          `json:"address,omitempty"`
	City         string          `json:"city,omitempty"`
	State        string          `json:"state,omitempty"`
	Zip          string          `json:"zip,omitempty"`
	Phone        string          `json:"phone,omitempty"`
	Website      string          `json:"website,omitempty"`
	MapsURL      string          `json:"maps_url,omitempty"`
	Rating       float64         `json:"rating"`
	ReviewCount  int             `json:"review_count"`
	Category     string          `json:"category,omitempty"`
	Types        []string        `json:"types,omitempty"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	OpeningHours json.RawMessage `json:"opening_hours,omitempty"`
}

// ToLead converts the candidate into a pending lead owned by jobID.
func (c Candidate) ToLead(jobID string, now time.Time) *model.Lead {
	l := model.NewLead(c.Name)
	l.ID = uuid.NewString()
	l.SearchJobID = model.StringPtr(jobID)
	l.PlaceID = model.StringPtr(c.PlaceID)
	l.Address = c.Address
	l.City = c.City
	l.State = c.State
	l.Zip = c.Zip
	l.Phone = c.Phone
	l.Website = c.Website
	l.HasWebsite = c.Website != ""
	l.MapsURL = c.MapsURL
	l.Rating = c.Rating
	l.ReviewCount = c.ReviewCount
	l.Category = c.Category
	l.Types = append([]string(nil), c.Types...)
	l.Latitude = c.Latitude
	l.Longitude = c.Longitude
	l.OpeningHours = c.OpeningHours
	l.CreatedAt = now
	l.UpdatedAt = now
	return l
}

// Provider searches for businesses matching a query near a location.
// Search never fails: provider errors truncate the result set.
type Provider interface {
	Name() string
	Search(ctx context.Context, query, location string, maxResults int) []Candidate
}

// NewProvider picks the Places provider when an API key is configured,
// otherwise the synthetic provider when explicitly enabled.
func NewProvider(gcfg config.GoogleConfig, dcfg config.DiscoveryConfig) (Provider, error) {
	if gcfg.Key != "" {
		var opts []google.Option
		if gcfg.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(gcfg.BaseURL))
		}
		limit := gcfg.RateLimit
		if limit <= 0 {
			limit = defaultRateLimit
		}
		return NewPlacesProvider(google.NewClient(gcfg.Key, opts...),
			WithLimiter(rate.NewLimiter(rate.Limit(limit), 1)),
			WithPageSize(gcfg.PageSize),
		), nil
	}
	if dcfg.Synthetic {
		return NewSyntheticProvider(nil), nil
	}
	return nil, eris.New("discovery: no google.key configured and discovery.synthetic is disabled")
}
