package epochstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares region epochs across processes and survives restarts.
// Optionally a TTL is applied to epoch keys to prevent unbounded growth; an
// expired epoch key reads as 0 and cached entries self-heal on access.
type Redis struct {
	rdb redis.UniversalClient
	ns  string        // key namespace, e.g. an application name
	ttl time.Duration // optional TTL for epoch keys; 0 disables expiry
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed epoch store without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed epoch store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(region string) string { return "epoch:" + s.ns + ":" + region }

// Snapshot returns the current epoch. Missing regions read as 0.
func (s *Redis) Snapshot(ctx context.Context, region string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(region)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis epoch parse: %w", err)
	}
	return u, nil
}

// Bump atomically increments the epoch and (optionally) refreshes TTL.
// When ttl > 0, INCR + EXPIRE are pipelined in a single round-trip and the
// INCR result is captured from the pipeline.
func (s *Redis) Bump(ctx context.Context, region string) (uint64, error) {
	k := s.key(region)

	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable; Redis handles expiry when a TTL is set.
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *Redis) Close(ctx context.Context) error { return s.rdb.Close() }
