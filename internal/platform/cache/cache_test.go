package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_ADDR", mr.Addr())
	c, err := NewFromEnv(logger.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNewFromEnvWithoutAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	c, err := NewFromEnv(logger.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c, "cache is optional")
}

func TestGenerationBumps(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	assert.EqualValues(t, 0, c.Generation(ctx))
	c.BumpGeneration(ctx)
	assert.EqualValues(t, 1, c.Generation(ctx))
	c.BumpGeneration(ctx)
	assert.EqualValues(t, 2, c.Generation(ctx))
}

func TestGetSetJSON(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	var out payload
	assert.False(t, c.GetJSON(ctx, "k", &out), "miss before set")

	c.SetJSON(ctx, "k", payload{Query: "q", TopK: 3}, time.Minute)
	require.True(t, c.GetJSON(ctx, "k", &out))
	assert.Equal(t, payload{Query: "q", TopK: 3}, out)

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.GetJSON(ctx, "k", &out), "TTL expires entries")
}

func TestNilCacheIsPassThrough(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	assert.EqualValues(t, 0, c.Generation(ctx))
	c.BumpGeneration(ctx)
	var out int
	assert.False(t, c.GetJSON(ctx, "k", &out))
	c.SetJSON(ctx, "k", 1, time.Minute)
	assert.NoError(t, c.Close())
}
