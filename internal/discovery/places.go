package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/metrics"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/google"
)

const (
	// defaultRateLimit is requests per second against the Places API.
	defaultRateLimit = 5
	// maxPages bounds pagination even if the API keeps returning tokens.
	maxPages = 20
)

// PlacesProvider searches the Google Places text search API.
type PlacesProvider struct {
	client   google.Client
	limiter  *rate.Limiter
	breaker  *resilience.CircuitBreaker
	pageSize int
}

// PlacesOption configures a PlacesProvider.
type PlacesOption func(*PlacesProvider)

// WithLimiter sets the request rate limiter.
func WithLimiter(l *rate.Limiter) PlacesOption {
	return func(p *PlacesProvider) {
		if l != nil {
			p.limiter = l
		}
	}
}

// WithPageSize sets maxResultCount per request (1-20).
func WithPageSize(n int) PlacesOption {
	return func(p *PlacesProvider) {
		if n > 0 && n <= google.MaxPageSize {
			p.pageSize = n
		}
	}
}

// WithBreaker sets the circuit breaker shared across searches.
func WithBreaker(cb *resilience.CircuitBreaker) PlacesOption {
	return func(p *PlacesProvider) {
		if cb != nil {
			p.breaker = cb
		}
	}
}

// NewPlacesProvider creates a PlacesProvider backed by client.
func NewPlacesProvider(client google.Client, opts ...PlacesOption) *PlacesProvider {
	p := &PlacesProvider{
		client:   client,
		limiter:  rate.NewLimiter(defaultRateLimit, 1),
		pageSize: google.MaxPageSize,
	}
	for _, o := range opts {
		o(p)
	}
	if p.breaker == nil {
		p.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("places: circuit breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return p
}

// Name implements Provider.
func (p *PlacesProvider) Name() string { return "google_places" }

// Search pages through text search results for "query in location" until
// maxResults candidates are collected or the API has no further pages. Any error
// stops pagination and the results gathered so far are returned.
func (p *PlacesProvider) Search(ctx context.Context, query, location string, maxResults int) []Candidate {
	log := zap.L().With(zap.String("provider", p.Name()), zap.String("query", query), zap.String("location", location))
	text := fmt.Sprintf("%s in %s", query, location)

	var (
		results   []Candidate
		pageToken string
	)
	for page := 0; page < maxPages && len(results) < maxResults; page++ {
		if err := p.limiter.Wait(ctx); err != nil {
			log.Warn("places: rate limit wait", zap.Error(err))
			break
		}

		req := google.SearchTextRequest{
			TextQuery:      text,
			MaxResultCount: p.pageSize,
			PageToken:      pageToken,
		}
		resp, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (*google.SearchTextResponse, error) {
			return p.client.SearchText(ctx, req)
		})
		if err != nil {
			metrics.ObservePlacesRequest(requestOutcome(err))
			log.Error("places: search failed, returning partial results",
				zap.Int("page", page), zap.Int("collected", len(results)), zap.Error(err))
			break
		}
		metrics.ObservePlacesRequest("ok")

		for _, place := range resp.Places {
			results = append(results, candidateFromPlace(place))
		}

		if resp.NextPageToken == "" || len(resp.Places) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	log.Info("places: search complete", zap.Int("found", len(results)))
	return results
}

func requestOutcome(err error) string {
	var se *google.StatusError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &se):
		return "status_error"
	default:
		return "error"
	}
}

func candidateFromPlace(p google.Place) Candidate {
	city, state, zip := addressParts(p.AddressComponents)
	if city == "" && state == "" {
		city, state, zip = parseAddress(p.FormattedAddress)
	}
	c := Candidate{
		PlaceID:      p.ID,
		Name:         p.DisplayName.Text,
		Address:      p.FormattedAddress,
		City:         city,
		State:        state,
		Zip:          zip,
		Phone:        p.Phone(),
		Website:      p.WebsiteURI,
		MapsURL:      p.GoogleMapsURI,
		Rating:       p.Rating,
		ReviewCount:  p.UserRatingCount,
		Category:     p.PrimaryType,
		Types:        p.Types,
		OpeningHours: p.CurrentOpeningHours,
	}
	if p.Location != nil {
		c.Latitude = p.Location.Latitude
		c.Longitude = p.Location.Longitude
	}
	return c
}
