package client

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries the Prometheus instruments the client feeds. Construct with
// NewMetrics and register a single instance per process; a nil *Metrics
// disables instrumentation entirely.
type Metrics struct {
	requests    *prometheus.CounterVec
	retries     *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	uploadSteps *prometheus.CounterVec
}

// NewMetrics builds the client instrument set and registers it on reg.
// A nil registerer keeps the instruments private (useful in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zotmcp",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound Zotero API attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zotmcp",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retries scheduled by the request executor, by error kind.",
		}, []string{"kind"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zotmcp",
			Subsystem: "client",
			Name:      "cache_hits_total",
			Help:      "Read-cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "zotmcp",
			Subsystem: "client",
			Name:      "cache_misses_total",
			Help:      "Read-cache misses.",
		}),
		uploadSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zotmcp",
			Subsystem: "client",
			Name:      "upload_steps_total",
			Help:      "Upload state-machine transitions by destination step.",
		}, []string{"step"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.cacheHits, m.cacheMisses, m.uploadSteps)
	}
	return m
}

func (m *Metrics) observeRequest(method string, status int, transportFailure bool) {
	if m == nil {
		return
	}
	outcome := "transport_error"
	if !transportFailure {
		outcome = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) observeRetry(kind ErrorKind) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) observeUploadStep(step UploadStep) {
	if m == nil {
		return
	}
	m.uploadSteps.WithLabelValues(string(step)).Inc()
}
