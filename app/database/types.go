package database

import (
	"time"
)

// FetchStats summarizes page fetches in a time window.
type FetchStats struct {
	Since           time.Time  `json:"since"`
	Total           int        `json:"total"`
	Successes       int        `json:"successes"`
	HTTPErrors      int        `json:"http_errors"`
	TransportErrors int        `json:"transport_errors"`
	Bytes           int64      `json:"bytes"`
	AvgDurationMs   float64    `json:"avg_duration_ms"`
	LastFetchedAt   *time.Time `json:"last_fetched_at,omitempty"`
}
