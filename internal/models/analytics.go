package models

import "time"

// SystemMetrics represents service instrumentation captured by the telemetry service.
type SystemMetrics struct {
	CacheHitRatio              float64   `json:"cache_hit_ratio"`
	CacheHits                  uint64    `json:"cache_hits"`
	CacheMisses                uint64    `json:"cache_misses"`
	RequestsTotal              uint64    `json:"requests_total"`
	AverageRequestDurationMs   float64   `json:"average_request_duration_ms"`
	SnapshotLoads              uint64    `json:"snapshot_loads"`
	AverageSnapshotLoadMs      float64   `json:"average_snapshot_load_ms"`
	MetricComputations         uint64    `json:"metric_computations"`
	AverageMetricComputationMs float64   `json:"average_metric_computation_ms"`
	Goroutines                 int       `json:"goroutines"`
	GeneratedAt                time.Time `json:"generated_at"`
}
