// Package analytics collects per-request query events and ships them to
// the optional Kafka stream and PostgreSQL aggregate store. The serving
// path never blocks on analytics.
package analytics

import "time"

// EventKind distinguishes the two online operations.
type EventKind string

const (
	KindRecommend EventKind = "recommend"
	KindSearch    EventKind = "search"
)

// QueryEvent describes one served request.
type QueryEvent struct {
	Kind      EventKind `json:"kind"`
	Query     string    `json:"query"`
	Results   int       `json:"results"`
	LatencyMs int64     `json:"latency_ms"`
	Failed    bool      `json:"failed"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
