package models

import "time"

// MetricsSnapshot is a point-in-time summary of the service counters.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	FeedFailures             uint64    `json:"feed_failures"`
	CRMFailures              uint64    `json:"crm_failures"`
	LeadSubmissions          uint64    `json:"lead_submissions"`
	LeadWarnings             uint64    `json:"lead_warnings"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
