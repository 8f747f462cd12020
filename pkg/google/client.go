// Package google is a minimal client for the Places API (New) text search.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// MaxPageSize is the largest maxResultCount the API accepts.
const MaxPageSize = 20

// searchFields is the response field mask for text search.
var searchFields = []string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.addressComponents",
	"places.nationalPhoneNumber",
	"places.internationalPhoneNumber",
	"places.websiteUri",
	"places.googleMapsUri",
	"places.rating",
	"places.userRatingCount",
	"places.types",
	"places.primaryType",
	"places.location",
	"places.currentOpeningHours",
	"nextPageToken",
}

// Client performs Google Places API operations.
type Client interface {
	SearchText(ctx context.Context, req SearchTextRequest) (*SearchTextResponse, error)
}

// SearchTextRequest is the body of a places:searchText call.
type SearchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount,omitempty"`
	PageToken      string `json:"pageToken,omitempty"`
}

// SearchTextResponse is one page of text search results.
type SearchTextResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place is a business returned by text search.
type Place struct {
	ID                       string             `json:"id"`
	DisplayName              DisplayName        `json:"displayName"`
	FormattedAddress         string             `json:"formattedAddress"`
	AddressComponents        []AddressComponent `json:"addressComponents,omitempty"`
	NationalPhoneNumber      string             `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string             `json:"internationalPhoneNumber,omitempty"`
	WebsiteURI               string             `json:"websiteUri,omitempty"`
	GoogleMapsURI            string             `json:"googleMapsUri,omitempty"`
	Rating                   float64            `json:"rating,omitempty"`
	UserRatingCount          int                `json:"userRatingCount,omitempty"`
	Types                    []string           `json:"types,omitempty"`
	PrimaryType              string             `json:"primaryType,omitempty"`
	Location                 *LatLng            `json:"location,omitempty"`
	CurrentOpeningHours      json.RawMessage    `json:"currentOpeningHours,omitempty"`
}

// Phone returns the national number, falling back to the international one.
func (p Place) Phone() string {
	if p.NationalPhoneNumber != "" {
		return p.NationalPhoneNumber
	}
	return p.InternationalPhoneNumber
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// AddressComponent is one typed piece of a postal address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText"`
	Types     []string `json:"types"`
}

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("google: unexpected status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("google", "places:searchText")
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: retry,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SearchText runs one page of a text search. Transport failures and
// retryable statuses (429, 5xx) are retried; other statuses come back as
// *StatusError.
func (c *httpClient) SearchText(ctx context.Context, in SearchTextRequest) (*SearchTextResponse, error) {
	if in.MaxResultCount > MaxPageSize {
		in.MaxResultCount = MaxPageSize
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SearchTextResponse, error) {
		return c.post(ctx, body)
	})
}

func (c *httpClient) post(ctx context.Context, body []byte) (*SearchTextResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", strings.Join(searchFields, ","))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.ClassifyStatus(&StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}, resp.StatusCode)
	}

	var result SearchTextResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}
	return &result, nil
}
