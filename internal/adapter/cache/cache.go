// Package cache decorates a provider with an in-memory LRU over recent
// query results. Coordinates are keyed at five decimal places (roughly one
// meter), so a stationary tracker stops hitting the upstream API every cycle.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/taisau/ha-road-speed-limits/internal/domain"
	"github.com/taisau/ha-road-speed-limits/internal/observability"
)

// CachedProvider wraps a domain.Provider with an LRU cache.
type CachedProvider struct {
	inner   domain.Provider
	cache   *lruCache
	metrics *observability.Metrics
}

// Wrap decorates inner with a cache of maxEntries results. maxEntries <= 0
// disables caching and returns inner unchanged.
func Wrap(inner domain.Provider, maxEntries int, metrics *observability.Metrics) domain.Provider {
	if maxEntries <= 0 {
		return inner
	}
	return &CachedProvider{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Kind reports the wrapped provider's kind.
func (c *CachedProvider) Kind() domain.ProviderKind {
	return c.inner.Kind()
}

// Query serves from cache when possible, otherwise delegates to the wrapped
// provider. Only results with an actual speed value are cached, so failures
// and no-data answers are retried on the next cycle.
func (c *CachedProvider) Query(ctx context.Context, coord domain.Coordinate, radiusMeters int) (domain.SpeedLimitResult, error) {
	key := fmt.Sprintf("%s:%.5f,%.5f:%d", c.inner.Kind(), coord.Latitude, coord.Longitude, radiusMeters)
	if result, ok := c.cache.get(key); ok {
		c.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.CacheLookups.WithLabelValues("miss").Inc()

	result, err := c.inner.Query(ctx, coord, radiusMeters)
	if err != nil {
		return result, err
	}
	if result.SpeedValue != nil {
		c.cache.put(key, result)
	}
	return result, nil
}

// lruCache is a simple thread-safe LRU cache for SpeedLimitResults.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.SpeedLimitResult
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.SpeedLimitResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.SpeedLimitResult{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.SpeedLimitResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
