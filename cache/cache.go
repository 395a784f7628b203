// Package cache keeps recent scrape responses in memory so repeated requests
// for the same page can be answered without fetching it again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/use-agent/sieve/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  models.ScrapeResponse
	createdAt time.Time
}

// Cache is an in-memory store for scrape responses backed by go-cache.
// It is safe for concurrent use.
type Cache struct {
	store      *gocache.Cache
	maxEntries int
}

// New creates a Cache holding at most maxEntries responses, each for at most
// ttl. A non-positive maxEntries returns nil, which disables caching.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cleanup := ttl / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &Cache{
		store:      gocache.New(ttl, cleanup),
		maxEntries: maxEntries,
	}
}

// Key derives a cache key from the URL and the options that change the result.
func Key(url, fetchMode string, includeMarkdown bool) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(fetchMode))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(includeMarkdown)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached response when it is younger than maxAgeMs
// milliseconds. A non-positive maxAgeMs never hits.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ScrapeResponse, bool) {
	if c == nil || maxAgeMs <= 0 {
		return nil, false
	}
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if time.Since(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	resp := e.response
	return &resp, true
}

// Set stores a copy of resp. When the cache is full, expired items are
// purged first and, failing that, one arbitrary entry is evicted.
func (c *Cache) Set(key string, resp *models.ScrapeResponse) {
	if c == nil || resp == nil {
		return
	}
	if c.store.ItemCount() >= c.maxEntries {
		c.store.DeleteExpired()
	}
	if c.store.ItemCount() >= c.maxEntries {
		for k := range c.store.Items() {
			if k != key {
				c.store.Delete(k)
				break
			}
		}
	}
	c.store.SetDefault(key, &entry{response: *resp, createdAt: time.Now()})
}

// Len reports the number of stored responses, including expired ones not yet purged.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.store.ItemCount()
}
