package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemorySessionCache implements SessionCache with ttlcache. It does not
// survive restarts; intended for development and tests. Entries expire
// with the validity window so a long-dead session cannot linger.
type MemorySessionCache struct {
	cache *ttlcache.Cache[string, string]
}

// NewMemorySessionCache creates an in-memory session cache whose entries
// live for ttl.
func NewMemorySessionCache(ttl time.Duration) *MemorySessionCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	go cache.Start()

	return &MemorySessionCache{cache: cache}
}

func (c *MemorySessionCache) get(key string) string {
	item := c.cache.Get(key)
	if item == nil {
		return ""
	}
	return item.Value()
}

// Read implements SessionCache.Read.
func (c *MemorySessionCache) Read(_ context.Context) (*RawSession, error) {
	raw, ok := decodeRaw(c.get(KeyUser), c.get(KeyLoginTime), c.get(KeyAutoLogin))
	if !ok {
		return nil, nil
	}
	return raw, nil
}

// Write implements SessionCache.Write.
func (c *MemorySessionCache) Write(_ context.Context, raw *RawSession) error {
	c.cache.Set(KeyUser, string(raw.Record), ttlcache.DefaultTTL)
	c.cache.Set(KeyLoginTime, encodeLoginTime(raw.LoginTime), ttlcache.DefaultTTL)
	c.cache.Set(KeyAutoLogin, encodeAutoLogin(raw.AutoLogin), ttlcache.DefaultTTL)
	return nil
}

// Clear implements SessionCache.Clear.
func (c *MemorySessionCache) Clear(_ context.Context) error {
	for _, key := range []string{KeyUser, KeyLoginTime, KeyAutoLogin, KeyPendingAction} {
		c.cache.Delete(key)
	}
	return nil
}

// Close stops the expiration goroutine.
func (c *MemorySessionCache) Close() error {
	c.cache.Stop()
	return nil
}

var _ SessionCache = (*MemorySessionCache)(nil)
