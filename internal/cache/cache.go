package cache

import "time"

// Cache defines a minimal key-value cache API with optional TTL per entry.
// Implementations are safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(key K) (V, bool)

	// Set stores the value. If ttl <= 0, the cache default applies.
	Set(key K, value V, ttl time.Duration)

	// SetIfAbsent stores the value only when the key is missing or expired
	// and reports whether it did.
	SetIfAbsent(key K, value V, ttl time.Duration) bool

	// Delete removes a key if present.
	Delete(key K)

	// Len returns the number of items currently stored.
	Len() int

	// Clear removes all entries.
	Clear()
}
