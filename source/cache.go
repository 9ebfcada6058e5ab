package source

import (
	"sync"
	"time"

	"github.com/solvirx/tokenwatch/core"
)

type cacheEntry struct {
	tokens    []core.Token
	fetchedAt time.Time
	expiresAt time.Time
}

// tokenCache is a TTL cache for fetched token payloads. Each source client
// owns one; the mutex guards the full read-check-write sequence so concurrent
// sessions cannot corrupt the bookkeeping.
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *tokenCache) put(key string, tokens []core.Token, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = cacheEntry{
		tokens:    tokens,
		fetchedAt: now,
		expiresAt: now.Add(ttl),
	}
}

// get returns the cached tokens only strictly before the entry expires.
func (c *tokenCache) get(key string) ([]core.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}

	return entry.tokens, true
}
