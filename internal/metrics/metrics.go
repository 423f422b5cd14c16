package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the availability service.
type Metrics struct {
	// ChecksTotal counts validated candidates by outcome reason.
	ChecksTotal *prometheus.CounterVec

	// QueryDuration is the time spent answering an availability query.
	QueryDuration *prometheus.HistogramVec

	// SearchDaysScanned is the number of days enumerated per next-available search.
	SearchDaysScanned prometheus.Histogram

	// CacheRequests counts slot cache lookups by result.
	CacheRequests *prometheus.CounterVec

	// CatalogReloads is the total number of resource catalog swaps.
	CatalogReloads prometheus.Counter

	// CatalogResources is the number of resources in the active catalog.
	CatalogResources prometheus.Gauge

	// HTTPRequests counts API requests by route and status code.
	HTTPRequests *prometheus.CounterVec

	// RateLimited is the total number of requests rejected by the rate limiter.
	RateLimited prometheus.Counter
}

// NewMetrics creates metrics and registers them with reg. A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "Total number of candidate ranges validated, by reason",
			},
			[]string{"reason"},
		),

		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Time to answer an availability query",
				Buckets:   []float64{.0005, .001, .005, .01, .02, .05, .1, .25},
			},
			[]string{"operation"},
		),

		SearchDaysScanned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_days_scanned",
				Help:      "Days enumerated per next-available search",
				Buckets:   []float64{1, 2, 5, 10, 30, 90, 365},
			},
		),

		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Total number of slot cache lookups, by result",
			},
			[]string{"result"},
		),

		CatalogReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of resource catalog reloads",
			},
		),

		CatalogResources: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_resources",
				Help:      "Number of resources in the active catalog",
			},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests, by route and status code",
			},
			[]string{"route", "code"},
		),

		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

// IncCheck counts one validation outcome.
func (m *Metrics) IncCheck(reason string) {
	m.ChecksTotal.WithLabelValues(reason).Inc()
}

// ObserveQuery records the time taken by an operation.
func (m *Metrics) ObserveQuery(operation string, seconds float64) {
	m.QueryDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveSearch records how many days a search enumerated.
func (m *Metrics) ObserveSearch(daysScanned int) {
	m.SearchDaysScanned.Observe(float64(daysScanned))
}

// IncCache counts a cache lookup result: hit, miss or error.
func (m *Metrics) IncCache(result string) {
	m.CacheRequests.WithLabelValues(result).Inc()
}

// CatalogSwapped records a catalog reload of the given size.
func (m *Metrics) CatalogSwapped(resources int) {
	m.CatalogReloads.Inc()
	m.CatalogResources.Set(float64(resources))
}

// IncHTTP counts one API response.
func (m *Metrics) IncHTTP(route, code string) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}

// IncRateLimited counts a rejected request.
func (m *Metrics) IncRateLimited() {
	m.RateLimited.Inc()
}
