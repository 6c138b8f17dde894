package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medch24/distribution-annuelle/internal/adapter/metrics"
	"github.com/medch24/distribution-annuelle/internal/domain"
)

const keyPrefix = "latest_copy:"

// CopyCache implements domain.CopyCache on Redis. It shortcuts the
// latest-copy query for read-heavy classes; the gradebook service invalidates
// it on every mutation, and the TTL bounds staleness if an invalidation is
// lost.
type CopyCache struct {
	client  *redis.Client
	logger  *slog.Logger
	ttl     time.Duration
	metrics *metrics.GatewayMetrics
}

// NewCopyCache creates a Redis-backed CopyCache. m may be nil.
func NewCopyCache(client *redis.Client, logger *slog.Logger, ttl time.Duration, m *metrics.GatewayMetrics) *CopyCache {
	return &CopyCache{
		client:  client,
		logger:  logger.With("component", "copy_cache"),
		ttl:     ttl,
		metrics: m,
	}
}

func (c *CopyCache) Get(ctx context.Context, className string) ([]domain.TableEntry, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+className).Bytes()
	if err == redis.Nil {
		if c.metrics != nil {
			c.metrics.CopyCacheMisses.Inc()
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("copy cache get: %w", err)
	}
	var tables []domain.TableEntry
	if err := json.Unmarshal(raw, &tables); err != nil {
		// A corrupt entry is treated as a miss; drop it so it cannot keep
		// poisoning reads.
		c.logger.Warn("dropping corrupt copy cache entry", "class", className, "error", err)
		_ = c.client.Del(ctx, keyPrefix+className).Err()
		return nil, false, nil
	}
	if c.metrics != nil {
		c.metrics.CopyCacheHits.Inc()
	}
	return tables, true, nil
}

func (c *CopyCache) Set(ctx context.Context, className string, tables []domain.TableEntry) error {
	raw, err := json.Marshal(tables)
	if err != nil {
		return fmt.Errorf("copy cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+className, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("copy cache set: %w", err)
	}
	return nil
}

func (c *CopyCache) Invalidate(ctx context.Context, className string) error {
	if err := c.client.Del(ctx, keyPrefix+className).Err(); err != nil {
		return fmt.Errorf("copy cache invalidate: %w", err)
	}
	return nil
}
