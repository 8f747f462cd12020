package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/resilience"
)

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func TestSearchText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		mask := r.Header.Get("X-Goog-FieldMask")
		for _, f := range []string{"places.id", "places.websiteUri", "places.addressComponents", "places.currentOpeningHours", "nextPageToken"} {
			assert.Contains(t, mask, f)
		}

		var body SearchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "plumbers in Austin, TX", body.TextQuery)
		assert.Equal(t, 20, body.MaxResultCount)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "places": [{
    "id": "ChIJ-1",
    "displayName": {"text": "Acme Plumbing"},
    "formattedAddress": "100 Congress Ave, Austin, TX 78701, USA",
    "addressComponents": [
      {"longText": "Austin", "shortText": "Austin", "types": ["locality", "political"]},
      {"longText": "Texas", "shortText": "TX", "types": ["administrative_area_level_1", "political"]},
      {"longText": "78701", "shortText": "78701", "types": ["postal_code"]}
    ],
    "internationalPhoneNumber": "+1 512-555-0100",
    "websiteUri": "https://acmeplumbing.test/",
    "googleMapsUri": "https://maps.google.com/?cid=1",
    "rating": 4.6,
    "userRatingCount": 212,
    "types": ["plumber", "point_of_interest"],
    "primaryType": "plumber",
    "location": {"latitude": 30.26, "longitude": -97.74},
    "currentOpeningHours": {"openNow": true}
  }],
  "nextPageToken": "tok-2"
}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), SearchTextRequest{TextQuery: "plumbers in Austin, TX", MaxResultCount: 50})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)

	p := resp.Places[0]
	assert.Equal(t, "ChIJ-1", p.ID)
	assert.Equal(t, "Acme Plumbing", p.DisplayName.Text)
	assert.Equal(t, "+1 512-555-0100", p.Phone())
	assert.Equal(t, "plumber", p.PrimaryType)
	assert.Len(t, p.AddressComponents, 3)
	require.NotNil(t, p.Location)
	assert.InDelta(t, 30.26, p.Location.Latitude, 0.0001)
	assert.JSONEq(t, `{"openNow": true}`, string(p.CurrentOpeningHours))
	assert.Equal(t, "tok-2", resp.NextPageToken)
}

func TestSearchText_PageToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body SearchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-2", body.PageToken)
		_, _ = w.Write([]byte(`{"places": [{"id": "p2", "displayName": {"text": "Second"}}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL+"/")).SearchText(context.Background(), SearchTextRequest{TextQuery: "x", PageToken: "tok-2"})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Empty(t, resp.NextPageToken)
}

func TestSearchText_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).SearchText(context.Background(), SearchTextRequest{TextQuery: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestSearchText_PermanentStatusNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
	}))
	defer srv.Close()

	resp, err := NewClient("bad", WithBaseURL(srv.URL), fastRetry()).SearchText(context.Background(), SearchTextRequest{TextQuery: "x"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.Contains(t, err.Error(), "403")
}

func TestSearchText_TransientStatusRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"places": [{"id": "p1"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL), fastRetry()).SearchText(context.Background(), SearchTextRequest{TextQuery: "x"})
	require.NoError(t, err)
	assert.Len(t, resp.Places, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearchText_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"places": [`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL), fastRetry()).SearchText(context.Background(), SearchTextRequest{TextQuery: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestSearchText_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).SearchText(ctx, SearchTextRequest{TextQuery: "x"})
	assert.Error(t, err)
	assert.Nil(t, resp)
}

func TestPlace_PhonePrefersNational(t *testing.T) {
	p := Place{NationalPhoneNumber: "(512) 555-0100", InternationalPhoneNumber: "+1 512-555-0100"}
	assert.Equal(t, "(512) 555-0100", p.Phone())
}
