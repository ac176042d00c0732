package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/pkg/platform/sentinel"
)

type cachedVerification struct {
	record    models.Verification
	expiresAt time.Time
}

// InMemoryCache holds verification results for a fixed TTL.
// Expired entries are evicted lazily on read.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]cachedVerification
	ttl     time.Duration
	now     func() time.Time
}

// Option configures an InMemoryCache.
type Option func(*InMemoryCache)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *InMemoryCache) {
		c.now = now
	}
}

// NewInMemoryCache creates a cache with the given TTL. A TTL of zero or less
// disables storage: every Find misses.
func NewInMemoryCache(ttl time.Duration, opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]cachedVerification),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Find returns the cached verification for key.
// Returns sentinel.ErrNotFound when absent or expired.
func (c *InMemoryCache) Find(_ context.Context, key string) (*models.Verification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, sentinel.ErrNotFound
	}
	record := entry.record
	return &record, nil
}

// Save stores a copy of record under key, replacing any previous entry.
// A nil record is a no-op.
func (c *InMemoryCache) Save(_ context.Context, key string, record *models.Verification) error {
	if record == nil || c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedVerification{record: *record, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
