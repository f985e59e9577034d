// ABOUTME: Data models for cached artifacts
// ABOUTME: Defines CacheRecord and the per-policy table statistics
package models

import (
	"encoding/json"
	"time"
)

// CacheRecord is one cached artifact together with the dependency digests
// and snapshot it was generated from. Snapshot and Artifact are stored as
// opaque JSON.
type CacheRecord struct {
	Key          string            `json:"cache_key"`
	Dependencies map[string]string `json:"dependency_hashes"`
	Snapshot     json.RawMessage   `json:"snapshot,omitempty"`
	Artifact     json.RawMessage   `json:"artifact"`
	GeneratedAt  time.Time         `json:"generated_at"`
	ExpiresAt    time.Time         `json:"expires_at"`
}

// Expired reports whether the record's TTL has lapsed at now.
func (r *CacheRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Age returns how long ago the artifact was generated.
func (r *CacheRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.GeneratedAt)
}

// CacheStats summarizes one cache table.
type CacheStats struct {
	Policy  string     `json:"policy"`
	Total   int        `json:"total"`
	Valid   int        `json:"valid"`
	Expired int        `json:"expired"`
	Oldest  *time.Time `json:"oldest,omitempty"`
	Newest  *time.Time `json:"newest,omitempty"`
}
