package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	storeOps          *prometheus.CounterVec
	storeDuration     *prometheus.HistogramVec
	eventsIngested    *prometheus.CounterVec
	secondaryFailures *prometheus.CounterVec
	droppedEntries    prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	publishFailures   prometheus.Counter
	crmRequests       *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry so tests can build many.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kv_operations_total",
			Help: "Key-value store operations by op and result.",
		}, []string{"op", "result"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kv_operation_duration_seconds",
			Help:    "Key-value store operation latency by op.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_ingested_total",
			Help: "Events durably written, by source tag.",
		}, []string{"source"}),
		secondaryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_secondary_write_failures_total",
			Help: "Index or summary writes that failed after the event record was stored.",
		}, []string{"stage"}),
		droppedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "read_dropped_entries_total",
			Help: "Index entries skipped on read because their body could not be fetched or parsed.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses observed.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Best-effort event publications that failed.",
		}),
		crmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_requests_total",
			Help: "Outbound CRM calls by operation and result.",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		m.httpRequestsTotal,
		m.httpDuration,
		m.storeOps,
		m.storeDuration,
		m.eventsIngested,
		m.secondaryFailures,
		m.droppedEntries,
		m.cacheHits,
		m.cacheMisses,
		m.publishFailures,
		m.crmRequests,
	)
	return m
}

// Middleware records request counts and durations keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// StoreOp implements kv.Observer.
func (m *Metrics) StoreOp(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Inc()
	m.storeDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) EventIngested(source string) {
	if m == nil {
		return
	}
	m.eventsIngested.WithLabelValues(source).Inc()
}

func (m *Metrics) SecondaryWriteFailed(stage string) {
	if m == nil {
		return
	}
	m.secondaryFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) EntriesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedEntries.Add(float64(n))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) CRMRequest(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.crmRequests.WithLabelValues(op, result).Inc()
}
