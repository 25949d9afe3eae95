package cache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// TTLCache is a Cache backed by ttlcache. Reads never extend an entry's
// lifetime, so a window starts at Set and ends TTL later.
type TTLCache[K comparable, V any] struct {
	c *ttlcache.Cache[K, V]
}

// Options controls construction of a TTLCache.
type Options struct {
	// DefaultTTL applies when Set is called with ttl <= 0. Zero means no expiry.
	DefaultTTL time.Duration
	// Capacity bounds the number of entries; zero means unbounded.
	Capacity uint64
}

// New constructs a TTLCache. Call Stop to release the expiry goroutine.
func New[K comparable, V any](opts Options) *TTLCache[K, V] {
	ttlOpts := []ttlcache.Option[K, V]{ttlcache.WithDisableTouchOnHit[K, V]()}
	if opts.DefaultTTL > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithTTL[K, V](opts.DefaultTTL))
	}
	if opts.Capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[K, V](opts.Capacity))
	}
	c := ttlcache.New[K, V](ttlOpts...)
	go c.Start()
	return &TTLCache[K, V]{c: c}
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.DefaultTTL
	}
	return ttl
}

// Get implements Cache.Get.
func (t *TTLCache[K, V]) Get(key K) (V, bool) {
	item := t.c.Get(key)
	if item == nil || item.IsExpired() {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

// Set implements Cache.Set.
func (t *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	t.c.Set(key, value, ttlOrDefault(ttl))
}

// SetIfAbsent implements Cache.SetIfAbsent.
func (t *TTLCache[K, V]) SetIfAbsent(key K, value V, ttl time.Duration) bool {
	_, found := t.c.GetOrSet(key, value, ttlcache.WithTTL[K, V](ttlOrDefault(ttl)))
	return !found
}

// Delete implements Cache.Delete.
func (t *TTLCache[K, V]) Delete(key K) {
	t.c.Delete(key)
}

// Len implements Cache.Len.
func (t *TTLCache[K, V]) Len() int {
	return t.c.Len()
}

// Clear implements Cache.Clear.
func (t *TTLCache[K, V]) Clear() {
	t.c.DeleteAll()
}

// Stop halts the background expiry loop.
func (t *TTLCache[K, V]) Stop() {
	t.c.Stop()
}

// Ensure TTLCache implements Cache at compile time.
var _ Cache[string, any] = (*TTLCache[string, any])(nil)
