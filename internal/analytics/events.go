// Package analytics records search activity: the collector batches search
// events onto Kafka, the aggregator folds them into rolling statistics, and
// the handler serves those statistics.
package analytics

import "time"

type SearchEvent struct {
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Mode        string    `json:"mode"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   float64   `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// ZeroResult reports whether the search found nothing.
func (e SearchEvent) ZeroResult() bool {
	return e.TotalHits == 0
}
