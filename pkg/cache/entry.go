// Package cache stores artifact API responses in Redis and supports
// revalidating them with conditional requests (If-None-Match /
// If-Modified-Since).
package cache

import (
	"time"
)

// Entry is a cached API response.
type Entry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// ETag for If-None-Match revalidation
	ETag string `json:"etag,omitempty"`

	// Expires is when the entry stops being fresh. A stale entry is kept
	// for revalidation until the manager's stale window elapses.
	Expires time.Time `json:"expires"`

	// LastModified from the Last-Modified response header
	LastModified time.Time `json:"last_modified,omitempty"`

	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`

	// CachedAt is when the response was stored
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true once the entry is no longer fresh.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the remaining freshness, 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether a conditional request can be built from
// the entry.
func (e *Entry) CanRevalidate() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}
