package bucket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tise-genene/verifyreceipt/internal/ratelimit/models"
)

const (
	testLimit  = 10
	testWindow = time.Minute
)

type FixedWindowStoreSuite struct {
	suite.Suite
	store *FixedWindowStore
	ctx   context.Context
	now   time.Time
}

func TestFixedWindowStoreSuite(t *testing.T) {
	suite.Run(t, new(FixedWindowStoreSuite))
}

func (s *FixedWindowStoreSuite) SetupTest() {
	// 10s into a minute-aligned window
	s.now = time.Unix(1_768_478_410, 0)
	s.store = New(testLimit, testWindow, WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *FixedWindowStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "203.0.113.1")
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
	})

	s.Run("requests up to limit allowed", func() {
		var result *models.RateLimitResult
		for range testLimit {
			var err error
			result, err = s.store.Allow(s.ctx, "203.0.113.2")
			s.Require().NoError(err)
			s.True(result.Allowed)
		}
		s.Equal(0, result.Remaining)
	})

	s.Run("request over limit denied with zero remaining", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "203.0.113.3")
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, "203.0.113.3")
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(50, result.RetryAfter)
	})

	s.Run("identities are independent", func() {
		for range testLimit + 1 {
			_, _ = s.store.Allow(s.ctx, "203.0.113.4")
		}
		result, err := s.store.Allow(s.ctx, "203.0.113.5")
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *FixedWindowStoreSuite) TestResetIsWindowBoundary() {
	result, err := s.store.Allow(s.ctx, "reset-probe")
	s.Require().NoError(err)
	s.Equal(int64(1_768_478_460), result.ResetEpochSeconds())
}

func (s *FixedWindowStoreSuite) TestNewWindowStartsFresh() {
	for range testLimit + 1 {
		_, _ = s.store.Allow(s.ctx, "203.0.113.9")
	}

	s.now = s.now.Add(testWindow)
	result, err := s.store.Allow(s.ctx, "203.0.113.9")
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(testLimit-1, result.Remaining)
}

func (s *FixedWindowStoreSuite) TestBoundaryBurstAdmitsTwiceLimit() {
	s.now = time.Unix(1_768_478_459, 0) // last second of a window
	allowed := 0
	for range testLimit {
		if r, _ := s.store.Allow(s.ctx, "burst"); r.Allowed {
			allowed++
		}
	}
	s.now = s.now.Add(time.Second) // first second of the next window
	for range testLimit {
		if r, _ := s.store.Allow(s.ctx, "burst"); r.Allowed {
			allowed++
		}
	}
	s.Equal(2*testLimit, allowed)
}

func (s *FixedWindowStoreSuite) TestCompactionKeepsCurrentAndPrevious() {
	store := New(testLimit, testWindow,
		WithClock(func() time.Time { return s.now }),
		WithHighWaterMark(5),
	)

	// Two windows ago
	s.now = s.now.Add(-2 * testWindow)
	for i := range 3 {
		_, _ = store.Allow(s.ctx, fmt.Sprintf("old-%d", i))
	}
	// Previous window
	s.now = s.now.Add(testWindow)
	_, _ = store.Allow(s.ctx, "prev")
	// Current window
	s.now = s.now.Add(testWindow)
	_, _ = store.Allow(s.ctx, "cur-0")
	s.Equal(5, store.Len())

	_, _ = store.Allow(s.ctx, "cur-1")
	s.Equal(3, store.Len(), "buckets older than the previous window are dropped")
}

func (s *FixedWindowStoreSuite) TestClampsConfiguration() {
	store := New(0, 0)
	s.Equal(1, store.Limit())
	s.Equal(time.Second, store.window)
}

func (s *FixedWindowStoreSuite) TestConcurrent() {
	limit := 100
	store := New(limit, testWindow, WithClock(func() time.Time { return s.now }))
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for range 200 {
		wg.Go(func() {
			result, err := store.Allow(s.ctx, "concurrent")
			s.Require().NoError(err)
			if result.Allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	s.Equal(limit, allowedCount)
}
