package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"storefinder/internal/adapters/observability"
)

// Cache is a networked backend on Valkey (Redis-compatible).
type Cache struct {
	client valkey.Client
}

func New(addr, pass string, db int) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		Password:     pass,
		SelectDB:     db,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Name() string { return "valkey" }

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		observability.ObserveCache("valkey", "miss")
		return nil, false, nil
	}
	if err != nil {
		observability.ObserveCache("valkey", "error")
		return nil, false, err
	}
	observability.ObserveCache("valkey", "hit")
	return b, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(b)).Ex(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		observability.ObserveCache("valkey", "error")
		return err
	}
	observability.ObserveCache("valkey", "set")
	return nil
}

func (c *Cache) Close() { c.client.Close() }
