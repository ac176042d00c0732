// Package extractors holds the pieces shared by the bank-side receipt
// extractors: a breaker-guarded, retried HTTP fetcher and text helpers.
package extractors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tise-genene/verifyreceipt/internal/verification/metrics"
	"github.com/tise-genene/verifyreceipt/pkg/platform/circuit"
	"github.com/tise-genene/verifyreceipt/pkg/platform/httputil"
	"github.com/tise-genene/verifyreceipt/pkg/platform/retry"
	"github.com/tise-genene/verifyreceipt/pkg/platform/sentinel"
)

const (
	userAgent       = "verifyreceipt-better-verifier/0.1"
	maxReceiptBytes = 10 << 20
)

// StatusError is a non-2xx receipt response other than 404.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Transient() {
		return fmt.Sprintf("receipt fetch transient failure: %d", e.StatusCode)
	}
	return fmt.Sprintf("receipt fetch failed: %d", e.StatusCode)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// TransportError is a network-level failure reaching the receipt host.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("receipt fetch transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Response is a successful receipt fetch.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher performs breaker-guarded, retried GETs for one receipt host.
type Fetcher struct {
	httpClient *http.Client
	breaker    *circuit.Breaker
	policy     retry.Policy
	retryOpts  []retry.Option
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = hc
	}
}

// WithTimeouts sets separate connect and total timeouts per attempt.
func WithTimeouts(connect, total time.Duration) Option {
	return func(f *Fetcher) {
		f.httpClient = httputil.NewClient(connect, total)
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

// WithRetryOptions passes extra options (jitter, sleep) to every retry loop.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(f *Fetcher) {
		f.retryOpts = append(f.retryOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithMetrics sets the metrics sink for breaker transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a fetcher guarded by breaker.
func NewFetcher(breaker *circuit.Breaker, opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: httputil.NewClient(20*time.Second, 60*time.Second),
		breaker:    breaker,
		policy:     retry.DefaultPolicy,
		logger:     slog.Default(),
		tracer:     otel.Tracer("verifyreceipt/extractors"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Breaker returns the circuit breaker guarding this fetcher.
func (f *Fetcher) Breaker() *circuit.Breaker {
	return f.breaker
}

// Get fetches url. A 404 yields sentinel.ErrNotFound and counts as a healthy
// call; an open circuit yields sentinel.ErrUnavailable without any request.
func (f *Fetcher) Get(ctx context.Context, url, accept string) (*Response, error) {
	if err := f.breaker.BeforeCall(); err != nil {
		f.logger.WarnContext(ctx, "receipt fetch rejected by open circuit",
			"breaker", f.breaker.Name(),
		)
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}

	ctx, span := f.tracer.Start(ctx, "extractor.fetch", trace.WithAttributes(
		attribute.String("breaker", f.breaker.Name()),
	))
	defer span.End()

	opts := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			f.logger.WarnContext(ctx, "retrying receipt fetch",
				"breaker", f.breaker.Name(),
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", err,
			)
		}),
	}, f.retryOpts...)

	resp, err := retry.Do(ctx, f.policy, IsRetryable, func(ctx context.Context) (*Response, error) {
		return f.once(ctx, url, accept)
	}, opts...)

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		f.recordSuccess(ctx)
		return nil, err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.recordFailure(ctx, err)
		return nil, err
	}
	f.recordSuccess(ctx)
	return resp, nil
}

func (f *Fetcher) once(ctx context.Context, url, accept string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build receipt request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("receipt %w", sentinel.ErrNotFound)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReceiptBytes))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return &Response{
		URL:         url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *Fetcher) recordSuccess(ctx context.Context) {
	if change := f.breaker.RecordSuccess(); change.Closed {
		f.logger.InfoContext(ctx, "circuit closed", "breaker", f.breaker.Name())
		f.metrics.SetCircuitOpen(f.breaker.Name(), false)
	}
}

func (f *Fetcher) recordFailure(ctx context.Context, cause error) {
	if change := f.breaker.RecordFailure(); change.Opened {
		f.logger.WarnContext(ctx, "circuit opened",
			"breaker", f.breaker.Name(),
			"failures", f.breaker.Failures(),
			"error", cause,
		)
		f.metrics.SetCircuitOpen(f.breaker.Name(), true)
	}
}

// IsRetryable classifies fetch errors: transient statuses and transport
// failures retry; not-found, terminal statuses and cancellation do not.
func IsRetryable(err error) bool {
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var te *TransportError
	return errors.As(err, &te)
}
