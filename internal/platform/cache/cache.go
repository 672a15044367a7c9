package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alecKarfonta/graphrag/internal/platform/logger"
)

const generationKey = "graphrag:store_generation"

// Cache memoizes retrieval results and tracks the process-wide store
// generation. Generation bumps on every ingest or delete; cached entries key
// on it, so a bump implicitly invalidates everything.
type Cache struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewFromEnv returns (nil, nil) when REDIS_ADDR is unset; callers treat a
// nil cache as a pass-through.
func NewFromEnv(log *logger.Logger) (*Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("cache: logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	return &Cache{
		log: log.With("service", "Cache"),
		rdb: rdb,
	}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// Generation reads the store generation counter. Zero when never bumped.
func (c *Cache) Generation(ctx context.Context) int64 {
	if c == nil {
		return 0
	}
	v, err := c.rdb.Get(ctx, generationKey).Int64()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("generation read failed", "error", err)
		}
		return 0
	}
	return v
}

// BumpGeneration increments the store generation, invalidating all cached
// retrieval results.
func (c *Cache) BumpGeneration(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.log.Warn("generation bump failed", "error", err)
	}
}

// GetJSON loads a cached value into out. Returns false on miss or any error;
// cache failures never fail the caller.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.log.Warn("cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}

// FlushAll clears cached entries and the generation counter. The clear-all
// path does not call it; it bumps the generation instead.
func (c *Cache) FlushAll(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		c.log.Warn("cache flush failed", "error", err)
	}
}
