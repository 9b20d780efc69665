package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

type memoryEntry struct {
	value   []byte
	count   int64
	expires time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// MemoryCache is a single-process stand-in for RedisAdapter, used when no
// Redis address is configured and in tests.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	stock   map[string]int
	entries map[string]memoryEntry
}

var (
	_ port.CacheRepository = (*MemoryCache)(nil)
	_ port.LockManager     = (*MemoryCache)(nil)
	_ port.RateLimiter     = (*MemoryCache)(nil)
	_ port.PricingCache    = (*MemoryCache)(nil)
)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		stock:   make(map[string]int),
		entries: make(map[string]memoryEntry),
	}
}

// getLocked returns a live entry, dropping it if expired. Caller holds mu.
func (m *MemoryCache) getLocked(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return e, false
	}
	return e, true
}

func (m *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryCache) DecrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stock[productID]
	if !ok || current < quantity {
		return false, nil
	}
	m.stock[productID] = current - quantity
	return true, nil
}

func (m *MemoryCache) IncrementStock(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] += quantity
	return nil
}

func (m *MemoryCache) SetStock(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = quantity
	return nil
}

// Stock reports the cached level, mainly for tests.
func (m *MemoryCache) Stock(productID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.stock[productID]
	return v, ok
}

func (m *MemoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.getLocked(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{expires: m.expiry(idempotencyKeyTTL)}
	return true, nil
}

func (m *MemoryCache) ClearIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryCache) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lk := lockKeyPrefix + key

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.getLocked(lk); ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLockHeld)
	}
	token := uuid.New().String()
	m.entries[lk] = memoryEntry{value: []byte(token), expires: m.expiry(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if cur, ok := m.entries[lk]; ok && string(cur.value) == token {
				delete(m.entries, lk)
			}
		})
	}, nil
}

func (m *MemoryCache) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	rk := rateLimitKeyPrefix + key

	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(rk)
	if !ok {
		e = memoryEntry{expires: m.expiry(window)}
	}
	e.count++
	m.entries[rk] = e
	return e.count <= int64(limit), nil
}

func (m *MemoryCache) GetPricing(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(pricingKeyPrefix + key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryCache) SetPricing(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[pricingKeyPrefix+key] = memoryEntry{
		value:   append([]byte(nil), data...),
		expires: m.expiry(ttl),
	}
	return nil
}
