package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/damp-platform/damp-api/internal/models"
)

const telemetryNamespace = "damp"

// TelemetryService owns the Prometheus registry and keeps running totals for the
// JSON system snapshot.
type TelemetryService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheWrite      prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	snapshotLoad    prometheus.Histogram
	computeDuration *prometheus.HistogramVec
	reportJobs      *prometheus.CounterVec

	cacheHitCount        atomic.Uint64
	cacheMissCount       atomic.Uint64
	requestCount         atomic.Uint64
	requestDurationTotal atomic.Uint64
	snapshotCount        atomic.Uint64
	snapshotDurationSum  atomic.Uint64
	computeCount         atomic.Uint64
	computeDurationSum   atomic.Uint64
}

// NewTelemetryService registers the collectors on a private registry.
func NewTelemetryService() *TelemetryService {
	registry := prometheus.NewRegistry()

	t := &TelemetryService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: telemetryNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: telemetryNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: telemetryNamespace,
			Name:      "cache_latency_seconds",
			Help:      "Latency of cache lookups",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: telemetryNamespace,
			Name:      "cache_write_seconds",
			Help:      "Latency of cache writes",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: telemetryNamespace,
			Name:      "cache_hit_ratio",
			Help:      "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: telemetryNamespace,
			Name:      "cache_hits_total",
			Help:      "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: telemetryNamespace,
			Name:      "cache_misses_total",
			Help:      "Total cache misses",
		}),
		snapshotLoad: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: telemetryNamespace,
			Name:      "snapshot_load_duration_seconds",
			Help:      "Time spent reading the entity store into a snapshot",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		computeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: telemetryNamespace,
			Name:      "metric_compute_duration_seconds",
			Help:      "Time spent aggregating one metric over a snapshot",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"metric"}),
		reportJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: telemetryNamespace,
			Name:      "report_jobs_total",
			Help:      "Report jobs reaching a terminal state",
		}, []string{"type", "status"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: telemetryNamespace,
		Name:      "goroutines",
		Help:      "Number of live goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		t.requestDuration, t.requestTotal,
		t.cacheLatency, t.cacheWrite,
		t.cacheHitRatio, t.cacheHits, t.cacheMisses,
		t.snapshotLoad, t.computeDuration, t.reportJobs,
		goroutines,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return t
}

// Handler exposes the Prometheus HTTP handler.
func (t *TelemetryService) Handler() http.Handler {
	if t == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return t.handler
}

// Registry exposes the underlying registry for tests and extra collectors.
func (t *TelemetryService) Registry() *prometheus.Registry {
	return t.registry
}

// ObserveHTTPRequest records request metrics.
func (t *TelemetryService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if t == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	t.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	t.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	t.requestCount.Add(1)
	t.requestDurationTotal.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a lookup outcome and refreshes the hit ratio gauge.
func (t *TelemetryService) RecordCacheOperation(hit bool, duration time.Duration) {
	if t == nil {
		return
	}
	t.cacheLatency.Observe(duration.Seconds())
	if hit {
		t.cacheHits.Inc()
		t.cacheHitCount.Add(1)
	} else {
		t.cacheMisses.Inc()
		t.cacheMissCount.Add(1)
	}
	hits, misses := t.cacheHitCount.Load(), t.cacheMissCount.Load()
	if total := hits + misses; total > 0 {
		t.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks cache write latency.
func (t *TelemetryService) ObserveCacheWrite(duration time.Duration) {
	if t == nil {
		return
	}
	t.cacheWrite.Observe(duration.Seconds())
}

// ObserveSnapshotLoad records the duration of one snapshot read.
func (t *TelemetryService) ObserveSnapshotLoad(duration time.Duration) {
	if t == nil {
		return
	}
	t.snapshotLoad.Observe(duration.Seconds())
	t.snapshotCount.Add(1)
	t.snapshotDurationSum.Add(uint64(duration.Nanoseconds()))
}

// ObserveCompute records the duration of one metric aggregation.
func (t *TelemetryService) ObserveCompute(metric string, duration time.Duration) {
	if t == nil {
		return
	}
	t.computeDuration.WithLabelValues(metric).Observe(duration.Seconds())
	t.computeCount.Add(1)
	t.computeDurationSum.Add(uint64(duration.Nanoseconds()))
}

// RecordReportJob counts a report job reaching a terminal status.
func (t *TelemetryService) RecordReportJob(reportType models.ReportType, status models.ReportStatus) {
	if t == nil {
		return
	}
	t.reportJobs.WithLabelValues(string(reportType), string(status)).Inc()
}

// Snapshot returns aggregated counters for the system endpoint.
func (t *TelemetryService) Snapshot() models.SystemMetrics {
	if t == nil {
		return models.SystemMetrics{}
	}
	hits, misses := t.cacheHitCount.Load(), t.cacheMissCount.Load()

	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}

	return models.SystemMetrics{
		CacheHitRatio:              ratio,
		CacheHits:                  hits,
		CacheMisses:                misses,
		RequestsTotal:              t.requestCount.Load(),
		AverageRequestDurationMs:   averageMillis(t.requestDurationTotal.Load(), t.requestCount.Load()),
		SnapshotLoads:              t.snapshotCount.Load(),
		AverageSnapshotLoadMs:      averageMillis(t.snapshotDurationSum.Load(), t.snapshotCount.Load()),
		MetricComputations:         t.computeCount.Load(),
		AverageMetricComputationMs: averageMillis(t.computeDurationSum.Load(), t.computeCount.Load()),
		Goroutines:                 runtime.NumGoroutine(),
		GeneratedAt:                time.Now().UTC(),
	}
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
