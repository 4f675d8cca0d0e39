// Package cache provides a short-TTL Redis cache for dashboard status counts.
// Strictly best-effort: any Redis failure reads as a miss.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "veridata/pkg/domain"
)

const statusCountsKey = "veridata:dashboard:status_counts"

// DefaultTTL keeps counts fresh enough for a dashboard without hammering the
// store on every page load.
const DefaultTTL = 30 * time.Second

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) GetStatusCounts(ctx context.Context) (map[id.EntryStatus]int, bool) {
	payload, err := c.client.Get(ctx, statusCountsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "dashboard cache read failed", "error", err)
		}
		return nil, false
	}

	var raw map[string]int
	if err := json.Unmarshal(payload, &raw); err != nil {
		c.logger.WarnContext(ctx, "dashboard cache payload malformed", "error", err)
		return nil, false
	}

	counts := make(map[id.EntryStatus]int, len(raw))
	for key, count := range raw {
		status, err := id.ParseEntryStatus(key)
		if err != nil {
			return nil, false
		}
		counts[status] = count
	}
	return counts, true
}

func (c *RedisCache) SetStatusCounts(ctx context.Context, counts map[id.EntryStatus]int) {
	raw := make(map[string]int, len(counts))
	for status, count := range counts {
		raw[status.String()] = count
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		c.logger.WarnContext(ctx, "dashboard cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, statusCountsKey, payload, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "dashboard cache write failed", "error", err)
	}
}
