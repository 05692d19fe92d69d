package breakout

import (
	"sync"
	"time"

	"github.com/Alias1177/volregime/models"
)

// cacheItem stores a cached lookup with expiration. A nil event records
// that the pair has no active breakout.
type cacheItem struct {
	event    *models.BreakoutEvent
	expireAt time.Time
}

// Cache is the in-memory TTL cache in front of the breakout store.
// Expired entries are dropped lazily on access or by Purge.
type Cache struct {
	mu   sync.RWMutex
	data map[string]cacheItem
	now  func() time.Time
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		data: make(map[string]cacheItem),
		now:  time.Now,
	}
}

func cacheKey(symbol string, tf models.Timeframe) string {
	return symbol + "|" + string(tf)
}

// Set caches ev (or the absence of an event when ev is nil) for ttl
func (c *Cache) Set(symbol string, tf models.Timeframe, ev *models.BreakoutEvent, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stored *models.BreakoutEvent
	if ev != nil {
		cp := *ev
		stored = &cp
	}
	c.data[cacheKey(symbol, tf)] = cacheItem{event: stored, expireAt: c.now().Add(ttl)}
}

// Get returns the cached event and whether the entry was present and fresh
func (c *Cache) Get(symbol string, tf models.Timeframe) (*models.BreakoutEvent, bool) {
	key := cacheKey(symbol, tf)

	c.mu.RLock()
	item, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(item.expireAt) {
		c.mu.Lock()
		if cur, still := c.data[key]; still && cur.expireAt.Equal(item.expireAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	if item.event == nil {
		return nil, true
	}
	cp := *item.event
	return &cp, true
}

// Purge drops expired entries and events detected before cutoff
func (c *Cache) Purge(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, item := range c.data {
		if now.After(item.expireAt) || (item.event != nil && item.event.DetectedAt.Before(cutoff)) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
