package db

import (
	"sync"

	"github.com/dgraph-io/ristretto"
)

// Cache key groups. Writes that touch an entity clear its whole group
// rather than trying to invalidate individual keys.
const (
	CacheTransactions = "transactions"
	CacheAccounts     = "accounts"
	CacheRecurring    = "recurring"
)

// Cache wraps ristretto with a per-group key registry so all cached
// reads of one entity type can be dropped together after a write.
type Cache struct {
	c  *ristretto.Cache
	mu sync.Mutex
	// group -> set of keys currently cached under that group
	keys map[string]map[string]struct{}
}

func NewCache() (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     10000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, keys: make(map[string]map[string]struct{})}, nil
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.c.Get(key)
}

func (c *Cache) Set(group, key string, value interface{}) {
	c.mu.Lock()
	if c.keys[group] == nil {
		c.keys[group] = make(map[string]struct{})
	}
	c.keys[group][key] = struct{}{}
	c.mu.Unlock()
	c.c.Set(key, value, 1)
}

func (c *Cache) ClearGroup(group string) {
	c.mu.Lock()
	for key := range c.keys[group] {
		c.c.Del(key)
	}
	delete(c.keys, group)
	c.mu.Unlock()
}
