package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultSecondFactorMaxAttempts = 5
	defaultSecondFactorCooldown    = 5 * time.Minute
	defaultSecondFactorPrefix      = "2fa:att:"
)

var (
	// ErrRateLimited is returned once an account has used up its attempts.
	ErrRateLimited = errors.New("second factor rate limited")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("second factor limiter unavailable")
)

// SecondFactorConfig holds limiter thresholds. Zero values fall back to
// 5 attempts per 5 minutes.
type SecondFactorConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
	KeyPrefix   string
}

// SecondFactorLimiter counts failed 2FA attempts per account in Redis.
type SecondFactorLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int64
	cooldown    time.Duration
	prefix      string
}

// NewSecondFactorLimiter returns a limiter backed by redisClient.
func NewSecondFactorLimiter(redisClient redis.UniversalClient, cfg SecondFactorConfig) *SecondFactorLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultSecondFactorMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultSecondFactorCooldown
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultSecondFactorPrefix
	}
	return &SecondFactorLimiter{redis: redisClient, maxAttempts: int64(max), cooldown: cd, prefix: prefix}
}

func (l *SecondFactorLimiter) key(accountID string) string {
	return l.prefix + accountID
}

// Check fails with ErrRateLimited when the account has no attempts left.
func (l *SecondFactorLimiter) Check(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Get(ctx, l.key(accountID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts a failed attempt. The window starts at the first
// failure and is not extended by later ones.
func (l *SecondFactorLimiter) RecordFailure(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	count, err := l.redis.Incr(ctx, l.key(accountID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(accountID), l.cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter after a successful verification.
func (l *SecondFactorLimiter) Reset(ctx context.Context, accountID string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(accountID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
