package revocation

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "rvk"

// RedisStore keeps entries in a single sorted set scored by expiry in
// milliseconds. Lookups are ZSCORE point reads; sweeps are one
// ZREMRANGEBYSCORE.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
}

// NewRedisStore returns a RedisStore using key, or "rvk" when key is empty.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{redis: client, key: key}
}

// Add implements Store.
func (s *RedisStore) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	return s.redis.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(expiresAt.UnixMilli()),
		Member: jti,
	}).Err()
}

// Contains implements Store.
func (s *RedisStore) Contains(ctx context.Context, jti string) (bool, error) {
	err := s.redis.ZScore(ctx, s.key, jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteExpired implements Store.
func (s *RedisStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return s.redis.ZRemRangeByScore(ctx, s.key, "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Result()
}
