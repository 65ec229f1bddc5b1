// Package metrics - Prometheus metrics for the dogma engine and its
// surrounding services
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttributeQueryDuration tracks how long a get_*_attribute call takes
	// to resolve, including recursive magnitude resolution.
	AttributeQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dogma_attribute_query_duration_seconds",
		Help:    "Duration of attribute resolution calls",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~400ms
	})

	// MutatorCallsTotal counts mutating Context calls by operation name
	// (add_module, set_module_state, add_drone, ...).
	MutatorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogma_mutator_calls_total",
		Help: "Total mutating Context calls by operation",
	}, []string{"operation"})

	// ContextsLive reports how many contexts internal/apipool currently
	// has checked in.
	ContextsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dogma_contexts_live",
		Help: "Number of contexts currently registered in the API pool",
	})

	// CatalogueCacheHitsTotal and CatalogueCacheMissesTotal count
	// internal/cataloguecache lookups by lookup kind (type, attr, ...).
	CatalogueCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogma_catalogue_cache_hits_total",
		Help: "Total catalogue cache hits by lookup kind",
	}, []string{"kind"})

	CatalogueCacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogma_catalogue_cache_misses_total",
		Help: "Total catalogue cache misses by lookup kind",
	}, []string{"kind"})

	// ESIRequestsTotal counts ESI requests internal/skillimport makes, by
	// status code.
	ESIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogma_esi_requests_total",
		Help: "Total ESI requests by status code",
	}, []string{"status_code"})

	// AuditWriteFailuresTotal counts internal/audit writes that failed
	// and were dropped rather than failing the request.
	AuditWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dogma_audit_write_failures_total",
		Help: "Total audit log writes that failed and were dropped",
	})

	// HTTPRequestsTotal counts internal/handlers requests by route and
	// status code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dogma_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "status_code"})
)
