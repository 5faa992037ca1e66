package redisad

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"storefinder/internal/adapters/observability"
)

// Cache is the networked backend; entries expire natively via SET EX.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})}
}

// NewFromClient wraps an existing client.
func NewFromClient(c *redis.Client) *Cache { return &Cache{c: c} }

func (r *Cache) Name() string { return "redis" }

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

func (r *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return nil, false, nil
	}
	if err != nil {
		observability.ObserveCache("redis", "error")
		return nil, false, err
	}
	observability.ObserveCache("redis", "hit")
	return v, true, nil
}

func (r *Cache) Set(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, b, ttl).Err(); err != nil {
		observability.ObserveCache("redis", "error")
		return err
	}
	observability.ObserveCache("redis", "set")
	return nil
}
