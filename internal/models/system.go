package models

import "time"

// SystemMetrics is the instrumentation snapshot served to admin/developer
// dashboards.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	ResolvesTotal            uint64    `json:"resolves_total"`
	AverageResolveDurationMs float64   `json:"average_resolve_duration_ms"`
	FetchCount               uint64    `json:"fetch_count"`
	AverageFetchDurationMs   float64   `json:"average_fetch_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
