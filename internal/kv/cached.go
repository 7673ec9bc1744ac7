package kv

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
)

type entry struct {
	value string
	found bool
}

// Cached fronts a Store with an in-process cache. Reads fill the cache,
// writes go to the backend first and then replace the cached value.
type Cached struct {
	next  Store
	cache *otter.Cache[string, entry]
}

func NewCached(next Store, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1024
	}
	return &Cached{
		next: next,
		cache: otter.Must(&otter.Options[string, entry]{
			MaximumSize:      size,
			InitialCapacity:  min(size, 64),
			ExpiryCalculator: otter.ExpiryWriting[string, entry](ttl),
		}),
	}
}

func (c *Cached) Get(ctx context.Context, key string) (string, bool, error) {
	if e, ok := c.cache.GetIfPresent(key); ok {
		return e.value, e.found, nil
	}
	value, found, err := c.next.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.cache.Set(key, entry{value: value, found: found})
	return value, found, nil
}

func (c *Cached) Put(ctx context.Context, key, value string) error {
	if err := c.next.Put(ctx, key, value); err != nil {
		c.cache.Invalidate(key)
		return err
	}
	c.cache.Set(key, entry{value: value, found: true})
	return nil
}
