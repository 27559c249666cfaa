package cache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"FeedIngestor/internal/ports"
)

const defaultFrontSize = 256

type entry struct {
	payload   json.RawMessage
	expiresAt time.Time
}

// LRU keeps recently written payloads in process in front of a durable
// cache. Writes go through to the backing store first.
type LRU struct {
	next    ports.ResponseCache
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

var _ ports.ResponseCache = (*LRU)(nil)

// NewLRU fronts next with at most size entries.
func NewLRU(next ports.ResponseCache, size int) (*LRU, error) {
	if size <= 0 {
		size = defaultFrontSize
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &LRU{next: next, entries: entries, now: time.Now}, nil
}

// Get serves unexpired entries from memory and falls back to the store.
func (c *LRU) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if e, ok := c.entries.Get(key); ok {
		if c.now().Before(e.expiresAt) {
			return e.payload, true, nil
		}
		c.entries.Remove(key)
	}
	return c.next.Get(ctx, key)
}

// Put writes through and remembers the payload until its expiry.
func (c *LRU) Put(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	if err := c.next.Put(ctx, key, payload, ttl); err != nil {
		return err
	}
	c.entries.Add(key, entry{payload: payload, expiresAt: c.now().Add(ttl)})
	return nil
}
