package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tise-genene/verifyreceipt/internal/ratelimit/models"
)

// DefaultHighWaterMark is the bucket count above which stale windows are compacted.
const DefaultHighWaterMark = 10_000

// bucketKey identifies one counter: an identity within one window index.
type bucketKey struct {
	identity string
	window   int64
}

// FixedWindowStore counts hits per identity in fixed, wall-clock aligned windows.
// In-memory and single-process; a burst straddling a window boundary may admit up
// to twice the limit.
type FixedWindowStore struct {
	mu        sync.Mutex
	buckets   map[bucketKey]int
	limit     int
	window    time.Duration
	highWater int
	now       func() time.Time
}

// Option configures a FixedWindowStore.
type Option func(*FixedWindowStore)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *FixedWindowStore) {
		s.now = now
	}
}

// WithHighWaterMark overrides the compaction threshold.
func WithHighWaterMark(n int) Option {
	return func(s *FixedWindowStore) {
		s.highWater = max(1, n)
	}
}

// New creates a store admitting limit hits per identity per window.
// limit is clamped to at least 1 and window to at least one second.
func New(limit int, window time.Duration, opts ...Option) *FixedWindowStore {
	s := &FixedWindowStore{
		buckets:   make(map[bucketKey]int),
		limit:     max(1, limit),
		window:    max(time.Second, window),
		highWater: DefaultHighWaterMark,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records one hit for identity and reports whether it fits in the current window.
func (s *FixedWindowStore) Allow(_ context.Context, identity string) (*models.RateLimitResult, error) {
	now := s.now()
	window := s.windowIndex(now)
	resetAt := time.Unix(0, (window+1)*int64(s.window))

	s.mu.Lock()
	key := bucketKey{identity: identity, window: window}
	s.buckets[key]++
	count := s.buckets[key]
	if len(s.buckets) > s.highWater {
		s.compact(window)
	}
	s.mu.Unlock()

	result := &models.RateLimitResult{
		Allowed:   count <= s.limit,
		Limit:     s.limit,
		Remaining: max(0, s.limit-count),
		ResetAt:   resetAt,
	}
	if !result.Allowed {
		result.RetryAfter = int(math.Ceil(resetAt.Sub(now).Seconds()))
	}
	return result, nil
}

// Limit returns the configured per-window limit.
func (s *FixedWindowStore) Limit() int {
	return s.limit
}

// Len returns the number of live buckets.
func (s *FixedWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// windowIndex is floor(now / window).
func (s *FixedWindowStore) windowIndex(now time.Time) int64 {
	ns := now.UnixNano()
	w := int64(s.window)
	idx := ns / w
	if ns < 0 && ns%w != 0 {
		idx--
	}
	return idx
}

// compact drops every bucket outside the current and previous window.
// Must be called while holding s.mu.
func (s *FixedWindowStore) compact(current int64) {
	for k := range s.buckets {
		if k.window != current && k.window != current-1 {
			delete(s.buckets, k)
		}
	}
}
