package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// DecrementStock atomically decreases stock in cache, returns false if insufficient
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock restores stock (for rollback on failure)
	IncrementStock(ctx context.Context, productID string, quantity int) error

	// SetStock overwrites the cached stock level for a product
	SetStock(ctx context.Context, productID string, quantity int) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency releases a key so a failed request can be retried
	ClearIdempotency(ctx context.Context, key string) error
}

// LockManager hands out short-lived exclusive locks.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PricingCache stores raw model results keyed by request shape.
type PricingCache interface {
	GetPricing(ctx context.Context, key string) ([]byte, bool, error)
	SetPricing(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
