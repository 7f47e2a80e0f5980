// Package credentials turns an optional session id or a directly supplied
// credential triple into a ready AWS client configuration, falling back to
// the server's default identity when a session cannot be resolved.
package credentials

import (
	"sync"
	"time"
)

// Static is a resolved AWS credential triple.
type Static struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// populated reports whether both mandatory fields are present.
func (s Static) populated() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

type cacheEntry struct {
	creds     Static
	expiresAt time.Time
}

// Cache is an in-memory TTL cache of session credentials keyed by session id.
// Entries are purged lazily: an expired entry is a miss and stays in memory
// until overwritten. Each resolver owns its own instance; nothing is shared
// at package level.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// DefaultTTL is the cache window used when no TTL is configured.
const DefaultTTL = 30 * time.Minute

// NewCache creates a cache with the given entry TTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached credentials for a session id, treating expired
// entries as misses.
func (c *Cache) Get(sessionID string) (Static, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[sessionID]
	if !ok || c.now().After(entry.expiresAt) {
		return Static{}, false
	}
	return entry.creds, true
}

// Put stores credentials for a session id with a fresh TTL window.
func (c *Cache) Put(sessionID string, creds Static) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = cacheEntry{creds: creds, expiresAt: c.now().Add(c.ttl)}
}
