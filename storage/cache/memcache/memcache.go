// Package memcache is a process-local core.Cache.
package memcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/trezcool/ratiba/core"
)

type Cache struct{ c *gocache.Cache }

var _ core.Cache = (*Cache)(nil) // interface compliance check

func New(defaultTTL time.Duration) *Cache {
	return &Cache{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return b, true, nil
}

func (m *Cache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	// copied: callers may reuse val
	m.c.Set(key, append([]byte(nil), val...), ttl)
	return nil
}

func (m *Cache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
