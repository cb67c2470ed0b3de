// Package rediscache is a core.Cache shared by all API instances.
package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	rdb "github.com/redis/go-redis/v9"

	"github.com/trezcool/ratiba/core"
)

type Cache struct {
	c          *rdb.Client
	defaultTTL time.Duration
}

var _ core.Cache = (*Cache)(nil) // interface compliance check

func New(addr string, db int, defaultTTL time.Duration) *Cache {
	return &Cache{
		c:          rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		defaultTTL: defaultTTL,
	}
}

func (r *Cache) Ping(ctx context.Context) error {
	return errors.Wrap(r.c.Ping(ctx).Err(), "pinging redis")
}

func (r *Cache) Close() error {
	return r.c.Close()
}

func (r *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	if err != nil {
		if err == rdb.Nil {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "reading from redis")
	}
	return b, true, nil
}

func (r *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	return errors.Wrap(r.c.Set(ctx, key, val, ttl).Err(), "writing to redis")
}

func (r *Cache) Delete(ctx context.Context, key string) error {
	return errors.Wrap(r.c.Del(ctx, key).Err(), "deleting from redis")
}
