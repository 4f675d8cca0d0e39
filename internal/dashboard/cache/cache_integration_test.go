//go:build integration

package cache_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veridata/internal/dashboard/cache"
	id "veridata/pkg/domain"
	"veridata/pkg/testutil/containers"
)

const statusCountsKey = "veridata:dashboard:status_counts"

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client, time.Minute, slog.Default())
}

func (s *RedisCacheSuite) SetupTest() {
	err := s.redis.FlushAll(context.Background())
	s.Require().NoError(err)
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()

	s.Run("empty cache misses", func() {
		_, ok := s.cache.GetStatusCounts(ctx)
		s.False(ok)
	})

	s.Run("set then get", func() {
		counts := map[id.EntryStatus]int{
			id.StatusNotStarted:         4,
			id.StatusFirstEntryComplete: 2,
			id.StatusReconciled:         7,
		}
		s.cache.SetStatusCounts(ctx, counts)

		got, ok := s.cache.GetStatusCounts(ctx)
		s.Require().True(ok)
		s.Equal(counts, got)
	})
}

func (s *RedisCacheSuite) TestTTLApplied() {
	ctx := context.Background()

	s.cache.SetStatusCounts(ctx, map[id.EntryStatus]int{id.StatusReconciled: 1})

	ttl, err := s.redis.Client.TTL(ctx, statusCountsKey).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

// A corrupted payload reads as a miss, never an error.
func (s *RedisCacheSuite) TestMalformedPayload() {
	ctx := context.Background()

	err := s.redis.Client.Set(ctx, statusCountsKey, "not json", time.Minute).Err()
	s.Require().NoError(err)

	_, ok := s.cache.GetStatusCounts(ctx)
	s.False(ok)

	err = s.redis.Client.Set(ctx, statusCountsKey, `{"no_such_status":3}`, time.Minute).Err()
	s.Require().NoError(err)

	_, ok = s.cache.GetStatusCounts(ctx)
	s.False(ok)
}
