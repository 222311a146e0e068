package source

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = 5 * time.Minute

// =============================================================================
// CACHE - In-memory TTL cache for proxy payloads
// =============================================================================

type cacheEntry struct {
	value     map[string]any
	createdAt time.Time
	expiresAt time.Time
}

// CacheStats is a point-in-time view of a Cache.
type CacheStats struct {
	TotalEntries   int    `json:"total_entries"`
	ValidEntries   int    `json:"valid_entries"`
	ExpiredEntries int    `json:"expired_entries"`
	Enabled        bool   `json:"cache_enabled"`
	DefaultTTL     int    `json:"default_ttl"` // seconds
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
}

// Cache stores payloads by key until their TTL elapses. Expired entries
// are dropped lazily on Get. A disabled cache misses every Get and
// ignores every Set; existing entries are kept.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	enabled bool
	ttl     time.Duration
	hits    uint64
	misses  uint64

	now    func() time.Time
	logger *zap.Logger
}

func NewCache(ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		enabled: true,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.Named("cache"),
	}
}

func (c *Cache) Get(key string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil, false
	}
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		c.logger.Debug("cache entry expired", zap.String("key", key))
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key with the current default TTL.
func (c *Cache) Set(key string, value map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	now := c.now()
	c.entries[key] = cacheEntry{value: value, createdAt: now, expiresAt: now.Add(c.ttl)}
}

// Clear removes the entries whose key contains pattern, or every entry
// when pattern is empty. It returns the number removed.
func (c *Cache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		n := len(c.entries)
		c.entries = make(map[string]cacheEntry)
		c.logger.Info("cache cleared", zap.Int("entries", n))
		return n
	}
	n := 0
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
			n++
		}
	}
	c.logger.Info("cache cleared", zap.String("pattern", pattern), zap.Int("entries", n))
	return n
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := CacheStats{
		TotalEntries: len(c.entries),
		Enabled:      c.enabled,
		DefaultTTL:   int(c.ttl / time.Second),
		Hits:         c.hits,
		Misses:       c.misses,
	}
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			s.ExpiredEntries++
		} else {
			s.ValidEntries++
		}
	}
	return s
}

func (c *Cache) Enable() {
	c.setEnabled(true)
}

func (c *Cache) Disable() {
	c.setEnabled(false)
}

func (c *Cache) setEnabled(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = on
	c.logger.Info("cache toggled", zap.Bool("enabled", on))
}

// SetTTL changes the TTL of future entries. Non-positive values are ignored.
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
	c.logger.Info("cache default ttl changed", zap.Duration("ttl", ttl))
}

// CacheKey identifies (ds, p). It reads like a request path so that
// Clear("clients") or Clear("year=2024") select what one expects.
func CacheKey(ds Dataset, p Params) string {
	key := string(ds)
	if q := p.Values().Encode(); q != "" {
		key += "?" + q
	}
	return key
}

// =============================================================================
// CACHED - DataSource decorator
// =============================================================================

// Cached serves Fetch from a Cache and fills it from the wrapped source.
// Concurrent misses on the same key share one upstream request. Errors
// are not cached.
//
// The shared request does not inherit the cancellation of the caller that
// started it: a disconnecting client only stops its own wait. It stays
// bounded by the wrapped source's own timeout.
type Cached struct {
	source DataSource
	cache  *Cache
	group  singleflight.Group
}

func NewCached(src DataSource, cache *Cache) *Cached {
	return &Cached{source: src, cache: cache}
}

func (c *Cached) Fetch(ctx context.Context, ds Dataset, p Params) (map[string]any, error) {
	key := CacheKey(ds, p)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		payload, err := c.source.Fetch(shared, ds, p)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, payload)
		return payload, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]any), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cache exposes the underlying cache for the admin endpoints.
func (c *Cached) Cache() *Cache {
	return c.cache
}

var _ DataSource = (*Cached)(nil)
