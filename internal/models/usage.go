package models

import "time"

// UsageRecord holds per-identity counters kept by the usage tracker.
// In-memory only; counters do not survive a restart.
type UsageRecord struct {
	Identity      string           `json:"identity"`
	TotalRequests int64            `json:"total_requests"`
	ByStyle       map[string]int64 `json:"by_style"`
	FirstSeen     time.Time        `json:"first_seen"`
	LastSeen      time.Time        `json:"last_seen"`
}
