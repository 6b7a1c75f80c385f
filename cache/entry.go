package cache

import "time"

// Entry is one cached response: the full, unfiltered document plus
// validator and expiry metadata. Projected variants are never stored,
// only the complete document. Entries are immutable after construction.
type Entry struct {
	// Document is the full response as parsed JSON
	// (map[string]any, []any or a scalar).
	Document any
	// ETag is the strong validator token, without quotes. Empty when
	// conditional validators are disabled.
	ETag string
	// LastModified is the weak validator timestamp, zero when disabled.
	LastModified time.Time
	// CachedAt is when the entry was stored.
	CachedAt time.Time
	// ExpiresAt is the absolute expiry. Zero means no per-entry expiry
	// (the store's hard TTL cap still applies).
	ExpiresAt time.Time
}

// Expired reports whether the entry is expired at the given time.
// Expired entries must be treated as absent.
func (e Entry) Expired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// HasValidators reports whether the entry carries conditional request
// validators.
func (e Entry) HasValidators() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
