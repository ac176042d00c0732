// Package orchestrator arbitrates between the upstream verification API and
// the bank-side receipt extractors, and owns result caching.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	rlmodels "github.com/tise-genene/verifyreceipt/internal/ratelimit/models"
	"github.com/tise-genene/verifyreceipt/internal/verification/metrics"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/pkg/requestcontext"
)

// Upstream calls the remote verification API.
type Upstream interface {
	VerifyReference(ctx context.Context, req models.ReferenceRequest) (models.UpstreamRaw, error)
	VerifyImage(ctx context.Context, req models.ImageRequest) (models.UpstreamRaw, error)
}

// Extractor fetches a provider's own receipt. A missing receipt is reported as
// an error wrapping sentinel.ErrNotFound.
type Extractor interface {
	Provider() models.Provider
	Extract(ctx context.Context, reference string) (models.Raw, error)
}

// Cache stores finished verifications. Find returns sentinel.ErrNotFound on a miss.
type Cache interface {
	Find(ctx context.Context, key string) (*models.Verification, error)
	Save(ctx context.Context, key string, record *models.Verification) error
}

// Limiter admits or rejects hits for an identity.
type Limiter interface {
	Allow(ctx context.Context, identity string) (*rlmodels.RateLimitResult, error)
}

type localPath struct {
	extractor Extractor
	limiter   Limiter
}

// Service runs reference and image verifications.
type Service struct {
	upstream Upstream
	cache    Cache
	locals   map[models.Provider]localPath
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	flights  singleflight.Group
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithClock overrides the time source used for latency measurements.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocalExtractor enables the local fallback for the extractor's provider.
// limiter may be nil to skip per-client throttling of local extraction.
func WithLocalExtractor(extractor Extractor, limiter Limiter) Option {
	return func(s *Service) {
		if extractor == nil {
			return
		}
		s.locals[extractor.Provider()] = localPath{extractor: extractor, limiter: limiter}
	}
}

// New creates a Service. upstream and cache are required.
func New(upstream Upstream, cache Cache, opts ...Option) (*Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("result cache is required")
	}

	svc := &Service{
		upstream: upstream,
		cache:    cache,
		locals:   make(map[models.Provider]localPath),
		logger:   slog.Default(),
		tracer:   otel.Tracer("verifyreceipt/orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// HasLocalExtractor reports whether a local fallback is configured for provider.
func (s *Service) HasLocalExtractor(provider models.Provider) bool {
	_, ok := s.locals[provider]
	return ok
}

// cached returns the stored verification for key, or nil on a miss.
func (s *Service) cached(ctx context.Context, key string) *models.Verification {
	v, err := s.cache.Find(ctx, key)
	s.metrics.IncrementCache(err == nil)
	if err != nil {
		return nil
	}
	return v
}

func (s *Service) store(ctx context.Context, key string, v *models.Verification) {
	if err := s.cache.Save(ctx, key, v); err != nil {
		s.logger.WarnContext(ctx, "failed to cache verification", "key", key, "error", err)
	}
}

// flight is the shared outcome of one coalesced call and the client that ran it.
type flight struct {
	v        *models.Verification
	identity string
	cached   bool
}

// coalesce runs fn once per key across concurrent callers. The shared call is
// detached from any single caller's cancellation. Local extraction budgets are
// per client, so a follower from another client is rechecked against its own.
func (s *Service) coalesce(ctx context.Context, key string, fn func(context.Context) (*models.Verification, error)) (*models.Verification, error) {
	identity := requestcontext.ClientIP(ctx)
	out, err, shared := s.flights.Do(key, func() (any, error) {
		// A flight that finished while this caller waited may already be cached.
		if v, err := s.cache.Find(ctx, key); err == nil {
			return flight{v: v, identity: identity, cached: true}, nil
		}
		v, err := fn(context.WithoutCancel(ctx))
		return flight{v: v, identity: identity}, err
	})
	f, _ := out.(flight)
	if !shared || f.identity == identity {
		if err != nil {
			return nil, err
		}
		return f.v, nil
	}

	switch {
	case errors.Is(err, ErrLocalRateLimited):
		return fn(ctx)
	case err != nil:
		return nil, err
	case !f.cached && f.v.Source == models.SourceLocal:
		if path, ok := s.locals[f.v.Provider]; ok {
			if err := s.allowLocal(ctx, path, string(f.v.Provider)); err != nil {
				return nil, err
			}
		}
	}
	return f.v, nil
}
