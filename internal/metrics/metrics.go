// Package metrics exposes Prometheus metrics for the listing store and the
// HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the namespace for all metrics.
const Namespace = "leftoverlink"

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// Store metrics
	Listings         prometheus.Gauge
	MutationsTotal   *prometheus.CounterVec
	StoreSubscribers prometheus.Gauge

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on reg. A nil reg uses a fresh
// registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)
	m := &Metrics{gatherer: reg}

	m.Listings = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "store",
		Name:      "listings",
		Help:      "Number of listings currently held by the store",
	})
	m.MutationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "store",
		Name:      "mutations_total",
		Help:      "Store operations that published a new collection",
	}, []string{"op"})
	m.StoreSubscribers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "store",
		Name:      "subscribers",
		Help:      "Active observers of the listing collection",
	})

	m.RequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
	m.RequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	return m
}

// RecordMutation counts a store operation and the resulting collection size.
func (m *Metrics) RecordMutation(op string, size int) {
	m.MutationsTotal.WithLabelValues(op).Inc()
	m.Listings.Set(float64(size))
}

// RecordListings sets the collection size without counting a mutation.
func (m *Metrics) RecordListings(size int) {
	m.Listings.Set(float64(size))
}

// RecordSubscribers sets the number of store observers.
func (m *Metrics) RecordSubscribers(n int) {
	m.StoreSubscribers.Set(float64(n))
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the registered metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
