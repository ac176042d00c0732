package orchestrator

import (
	"context"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rlmodels "github.com/tise-genene/verifyreceipt/internal/ratelimit/models"
	"github.com/tise-genene/verifyreceipt/internal/verification/models"
	"github.com/tise-genene/verifyreceipt/internal/verification/normalize"
	"github.com/tise-genene/verifyreceipt/internal/verification/upstream"
	dErrors "github.com/tise-genene/verifyreceipt/pkg/domain-errors"
	"github.com/tise-genene/verifyreceipt/pkg/platform/sentinel"
	"github.com/tise-genene/verifyreceipt/pkg/requestcontext"
)

// Fallback reasons, recorded as the metric label and log attribute.
const (
	reasonUpstreamError     = "upstream_error"
	reasonUpstreamNotFound  = "upstream_not_found"
	reasonAutomationFailure = "automation_failure"
	reasonNotFoundResult    = "not_found_result"
)

// ErrLocalRateLimited is returned when a client exhausts its local extraction budget.
var ErrLocalRateLimited = dErrors.New(dErrors.CodeRateLimited, "Too many receipt lookups. Please try again later.")

// VerifyReference verifies a transaction reference, consulting the provider's
// own receipt endpoint when the upstream answer is unusable.
func (s *Service) VerifyReference(ctx context.Context, req models.ReferenceRequest) (*models.Verification, error) {
	key := req.CacheKey()
	if v := s.cached(ctx, key); v != nil {
		return v, nil
	}

	return s.coalesce(ctx, key, func(ctx context.Context) (*models.Verification, error) {
		v, err := s.verifyReference(ctx, req)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, v)
		s.metrics.IncrementVerification("reference", string(req.Provider), string(v.Status), string(v.Source))
		s.logger.InfoContext(ctx, "reference verified",
			"provider", req.Provider,
			"status", v.Status,
			"source", v.Source,
			"confidence", v.Confidence,
		)
		return v, nil
	})
}

func (s *Service) verifyReference(ctx context.Context, req models.ReferenceRequest) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "orchestrator.verify_reference",
		trace.WithAttributes(attribute.String("provider", string(req.Provider))))
	defer span.End()

	start := s.now()
	raw, upErr := s.upstream.VerifyReference(ctx, req)
	s.metrics.ObserveUpstreamLatency(string(req.Provider), s.now().Sub(start))

	var upstreamResult *models.Verification
	if upErr == nil {
		v := normalize.Normalize(raw, req.Provider, req.Reference)
		upstreamResult = &v
	} else {
		s.logger.WarnContext(ctx, "upstream verification failed",
			"provider", req.Provider,
			"error", upErr,
		)
	}

	var localResult *models.Verification
	if path, ok := s.locals[req.Provider]; ok {
		if reason := fallbackReason(raw, upstreamResult, upErr); reason != "" {
			s.metrics.IncrementFallback(string(req.Provider), reason)
			s.logger.InfoContext(ctx, "falling back to local extraction",
				"provider", req.Provider,
				"reason", reason,
			)
			span.SetAttributes(attribute.String("fallback.reason", reason))

			local, err := s.runLocal(ctx, path, req)
			if errors.Is(err, ErrLocalRateLimited) {
				return nil, err
			}
			localResult = local
		}
	}

	chosen := selectResult(localResult, upstreamResult)
	if chosen == nil {
		err := mapUpstreamError(upErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "verification failed")
		return nil, err
	}
	if IsAutomationFailure(chosen.Raw) {
		span.SetStatus(codes.Error, "automation failure")
		return nil, ErrAutomationFailure
	}
	span.SetAttributes(
		attribute.String("status", string(chosen.Status)),
		attribute.String("source", string(chosen.Source)),
	)
	return chosen, nil
}

// runLocal applies the per-client local limiter and runs the extractor. A
// missing receipt is a normal unsuccessful result. Other failures are logged
// and reported as a nil result so the upstream answer can still be used.
func (s *Service) runLocal(ctx context.Context, path localPath, req models.ReferenceRequest) (*models.Verification, error) {
	provider := string(req.Provider)

	if err := s.allowLocal(ctx, path, provider); err != nil {
		return nil, err
	}

	raw, err := path.extractor.Extract(ctx, req.Reference)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		raw = models.LocalNotFound{Provider: req.Provider, Reference: req.Reference}
	case err != nil:
		outcome := localOutcome(err)
		s.metrics.IncrementLocalExtraction(provider, outcome)
		s.logger.WarnContext(ctx, "local extraction failed",
			"provider", provider,
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}

	v := normalize.Normalize(raw, req.Provider, req.Reference)
	s.metrics.IncrementLocalExtraction(provider, extractionOutcome(raw, v))
	return &v, nil
}

// allowLocal charges one local extraction to the calling client. Limiter
// failures allow the extraction.
func (s *Service) allowLocal(ctx context.Context, path localPath, provider string) error {
	if path.limiter == nil {
		return nil
	}
	key := rlmodels.NewLocalExtractionKey(requestcontext.ClientIP(ctx), provider)
	result, err := path.limiter.Allow(ctx, key)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "local rate limiter failed, allowing extraction",
			"provider", provider,
			"error", err,
		)
	case !result.Allowed:
		s.metrics.IncrementLocalExtraction(provider, "rate_limited")
		s.logger.WarnContext(ctx, "local extraction rate limited",
			"provider", provider,
			"retry_after", result.RetryAfter,
		)
		return ErrLocalRateLimited
	}
	return nil
}

func extractionOutcome(raw models.Raw, v models.Verification) string {
	switch {
	case v.IsSuccess():
		return "success"
	case isLocalNotFound(raw):
		return "not_found"
	default:
		return "failed"
	}
}

func isLocalNotFound(raw models.Raw) bool {
	_, ok := raw.(models.LocalNotFound)
	return ok
}

// fallbackReason returns why the local extractor should be consulted, or ""
// when the upstream answer stands. A PENDING upstream result is never overridden.
func fallbackReason(raw models.UpstreamRaw, result *models.Verification, upErr error) string {
	if upErr != nil {
		var ue *upstream.Error
		if errors.As(upErr, &ue) {
			switch {
			case IsAutomationFailure(ue.Body):
				return reasonAutomationFailure
			case ue.StatusCode == http.StatusNotFound || IsNotFound(ue.Body):
				return reasonUpstreamNotFound
			}
		}
		return reasonUpstreamError
	}
	if IsAutomationFailure(raw.Body) {
		return reasonAutomationFailure
	}
	if result != nil && result.Status == models.StatusFailed && IsNotFound(raw.Body) {
		return reasonNotFoundResult
	}
	return ""
}

// selectResult prefers a successful local result, then the upstream result,
// then whatever the local extractor produced.
func selectResult(local, upstreamResult *models.Verification) *models.Verification {
	switch {
	case local != nil && local.IsSuccess():
		return local
	case upstreamResult != nil:
		return upstreamResult
	default:
		return local
	}
}

func localOutcome(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return "circuit_open"
	case errors.Is(err, sentinel.ErrEmptyContent):
		return "empty"
	case dErrors.Is(err, dErrors.CodeValidation):
		return "invalid_reference"
	default:
		return "error"
	}
}
