// Package metrics exposes Prometheus collectors for discovery, crawling,
// and enrichment.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesFetchedTotal       *prometheus.CounterVec
	crawlDurationSeconds    prometheus.Histogram
	activeCrawls            prometheus.Gauge
	leadsProcessedTotal     *prometheus.CounterVec
	jobsTotal               *prometheus.CounterVec
	placesRequestsTotal     *prometheus.CounterVec
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call more than once; every Observe helper calls it.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_pages_fetched_total",
				Help: "Pages fetched while crawling lead websites, labeled by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leadgen_crawl_duration_seconds",
				Help:    "Wall time to crawl one lead website including subpages.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
			},
		)

		activeCrawls = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "leadgen_active_crawls",
				Help: "Lead enrichments currently in flight.",
			},
		)

		leadsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_leads_processed_total",
				Help: "Leads processed by the enrichment orchestrator, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_jobs_total",
				Help: "Search jobs reaching a status, labeled by phase and status.",
			},
			[]string{"phase", "status"},
		)

		placesRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_places_requests_total",
				Help: "Place search API requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadgen_http_requests_total",
				Help: "API requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadgen_http_request_duration_seconds",
				Help:    "API request latencies, labeled by method and route.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the default registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage counts one page fetch. kind is "homepage", "subpage", or "audit".
func ObservePage(kind, outcome string) {
	Init()
	pagesFetchedTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveCrawl records the duration of a full website crawl.
func ObserveCrawl(d time.Duration) {
	Init()
	crawlDurationSeconds.Observe(d.Seconds())
}

// IncActiveCrawls increments the in-flight enrichment gauge.
func IncActiveCrawls() {
	Init()
	activeCrawls.Inc()
}

// DecActiveCrawls decrements the in-flight enrichment gauge.
func DecActiveCrawls() {
	Init()
	activeCrawls.Dec()
}

// ObserveLead counts a lead processed with the given outcome.
func ObserveLead(outcome string) {
	Init()
	leadsProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObserveJob counts a job reaching status during phase ("discovery" or "enrichment").
func ObserveJob(phase, status string) {
	Init()
	jobsTotal.WithLabelValues(phase, status).Inc()
}

// ObservePlacesRequest counts one place search API call.
func ObservePlacesRequest(outcome string) {
	Init()
	placesRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(d.Seconds())
}
