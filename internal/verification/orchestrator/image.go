package orchestrator

import (
	"cmp"
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/internal/verification/normalize"
)

// VerifyImage verifies an uploaded receipt image through the upstream API.
// There is no local equivalent, so results are always sourced upstream.
func (s *Service) VerifyImage(ctx context.Context, req models.ImageRequest) (*models.Verification, error) {
	key := req.CacheKey()
	if v := s.cached(ctx, key); v != nil {
		return v, nil
	}

	return s.coalesce(ctx, key, func(ctx context.Context) (*models.Verification, error) {
		v, err := s.verifyImage(ctx, req)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, v)
		s.metrics.IncrementVerification("image", string(v.Provider), string(v.Status), string(v.Source))
		s.logger.InfoContext(ctx, "receipt image verified",
			"provider", v.Provider,
			"status", v.Status,
			"confidence", v.Confidence,
		)
		return v, nil
	})
}

func (s *Service) verifyImage(ctx context.Context, req models.ImageRequest) (*models.Verification, error) {
	label := cmp.Or(string(req.Provider), "image")
	ctx, span := s.tracer.Start(ctx, "orchestrator.verify_image",
		trace.WithAttributes(attribute.String("provider", label)))
	defer span.End()

	start := s.now()
	raw, err := s.upstream.VerifyImage(ctx, req)
	s.metrics.ObserveUpstreamLatency(label, s.now().Sub(start))
	if err != nil {
		s.logger.WarnContext(ctx, "upstream image verification failed", "provider", label, "error", err)
		mapped := mapUpstreamError(err)
		span.RecordError(mapped)
		span.SetStatus(codes.Error, "verification failed")
		return nil, mapped
	}

	v := normalize.Normalize(raw, req.Provider, "")
	if IsAutomationFailure(v.Raw) {
		span.SetStatus(codes.Error, "automation failure")
		return nil, ErrAutomationFailure
	}
	return &v, nil
}
