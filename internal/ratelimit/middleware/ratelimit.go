package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tise-genene/verifyreceipt/internal/ratelimit/metrics"
	"github.com/tise-genene/verifyreceipt/internal/ratelimit/models"
	"github.com/tise-genene/verifyreceipt/pkg/platform/httputil"
	"github.com/tise-genene/verifyreceipt/pkg/requestcontext"
)

// Limiter is the fixed-window check the middleware consults per client IP.
type Limiter interface {
	Allow(ctx context.Context, identity string) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter   Limiter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	disabled  bool
	skipPaths map[string]struct{}
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (RATE_LIMIT_ENABLED=false).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithMetrics records every decision.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// WithSkipPaths exempts exact paths (health checks, metrics scrapes).
func WithSkipPaths(paths ...string) Option {
	return func(m *Middleware) {
		for _, p := range paths {
			m.skipPaths[p] = struct{}{}
		}
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter:   limiter,
		logger:    logger,
		skipPaths: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit enforces the per-IP limit and always attaches X-RateLimit-* headers
// to limited routes. Limiter errors fail open.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}
		if _, skip := m.skipPaths[r.URL.Path]; skip {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := m.limiter.Allow(ctx, ip)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check IP rate limit", "error", err, "ip", ip)
			m.metrics.IncrementErrors()
			next.ServeHTTP(w, r)
			return
		}

		// Add headers regardless of outcome
		addRateLimitHeaders(w, result)

		if !result.Allowed {
			m.metrics.IncrementRejected()
			m.logger.WarnContext(ctx, "rate limited",
				"request_id", requestcontext.RequestID(ctx),
				"ip", ip,
				"method", r.Method,
				"path", r.URL.Path,
				"status", http.StatusTooManyRequests,
			)
			writeRateLimitExceeded(w, result)
			return
		}

		m.metrics.IncrementAllowed()
		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetEpochSeconds(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests",
		RetryAfter: result.RetryAfter,
	})
}
