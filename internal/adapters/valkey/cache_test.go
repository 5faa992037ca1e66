package valkey_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefinder/internal/adapters/valkey"
)

func newCache(t *testing.T) (*valkey.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := valkey.New(mr.Addr(), "", 0)
	if err != nil {
		// the RESP3 handshake depends on the miniredis build
		t.Skipf("valkey client against miniredis: %v", err)
	}
	t.Cleanup(c.Close)
	return c, mr
}

func TestCache_SetGetWithTTL(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "stores:1:2:1000", []byte(`[{"name":"x"}]`), 30*time.Minute))

	b, ok, err := c.Get(ctx, "stores:1:2:1000")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"name":"x"}]`, string(b))
	assert.Equal(t, 30*time.Minute, mr.TTL("stores:1:2:1000"))
	assert.Equal(t, "valkey", c.Name())
}

func TestCache_MissingKey(t *testing.T) {
	c, _ := newCache(t)

	b, ok, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, b)
}
