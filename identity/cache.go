package identity

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	identity Identity
	expires  time.Time
}

// identityCache is a fixed-size LRU cache with per-entry TTL expiry. It is
// safe for concurrent use: golang-lru/v2's Cache is internally locked.
type identityCache struct {
	cache *lru.Cache[string, cacheEntry]
	ttl   time.Duration
}

func newIdentityCache(size int, ttl time.Duration) (*identityCache, error) {
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &identityCache{cache: c, ttl: ttl}, nil
}

func (c *identityCache) get(key string) (Identity, bool) {
	entry, ok := c.cache.Get(key)
	if !ok {
		return Identity{}, false
	}
	if time.Now().After(entry.expires) {
		c.cache.Remove(key)
		return Identity{}, false
	}
	return entry.identity, true
}

func (c *identityCache) set(key string, id Identity) {
	c.cache.Add(key, cacheEntry{identity: id, expires: time.Now().Add(c.ttl)})
}

func (c *identityCache) purge(key string) {
	c.cache.Remove(key)
}
