package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const (
	stockKeyPrefix     = "stock:"
	lockKeyPrefix      = "lock:"
	rateLimitKeyPrefix = "ratelimit:"
	pricingKeyPrefix   = "pricing:"
	idempotencyKeyTTL  = 24 * time.Hour
)

var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

// Deletes the lock only while it still carries the caller's token.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

type RedisAdapter struct {
	client *redis.Client
}

var (
	_ port.CacheRepository = (*RedisAdapter)(nil)
	_ port.LockManager     = (*RedisAdapter)(nil)
	_ port.RateLimiter     = (*RedisAdapter)(nil)
	_ port.PricingCache    = (*RedisAdapter)(nil)
)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	key := stockKeyPrefix + productID

	result, err := decrementStockScript.Run(ctx, r.client, []string{key}, quantity).Int()
	if err != nil {
		return false, fmt.Errorf("redis: decrement stock %s: %w", productID, err)
	}

	return result == 1, nil
}

func (r *RedisAdapter) IncrementStock(ctx context.Context, productID string, quantity int) error {
	key := stockKeyPrefix + productID
	return r.client.IncrBy(ctx, key, int64(quantity)).Err()
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	key := stockKeyPrefix + productID
	return r.client.Set(ctx, key, quantity, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: set idempotency %s: %w", key, err)
	}

	return ok, nil
}

func (r *RedisAdapter) ClearIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Acquire takes an exclusive lock for ttl. The returned unlock is safe to
// call more than once and only releases a lock this call still owns.
func (r *RedisAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKeyPrefix + key

	ok, err := r.client.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLockHeld)
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(unlockCtx, r.client, []string{lk}, token).Err()
	}
	return unlock, nil
}

func (r *RedisAdapter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, r.client,
		[]string{rateLimitKeyPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	return count <= int64(limit), nil
}

func (r *RedisAdapter) GetPricing(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, pricingKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get pricing %s: %w", key, err)
	}
	return data, true, nil
}

func (r *RedisAdapter) SetPricing(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, pricingKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set pricing %s: %w", key, err)
	}
	return nil
}
