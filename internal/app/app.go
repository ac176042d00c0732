// Package app wires configuration into a runnable verification service.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tise-genene/verifyreceipt/internal/platform/config"
	"github.com/tise-genene/verifyreceipt/internal/platform/middleware"
	rlmetrics "github.com/tise-genene/verifyreceipt/internal/ratelimit/metrics"
	rlmiddleware "github.com/tise-genene/verifyreceipt/internal/ratelimit/middleware"
	"github.com/tise-genene/verifyreceipt/internal/ratelimit/store/bucket"
	"github.com/tise-genene/verifyreceipt/internal/verification/cache"
	"github.com/tise-genene/verifyreceipt/internal/verification/extractors"
	"github.com/tise-genene/verifyreceipt/internal/verification/extractors/cbe"
	"github.com/tise-genene/verifyreceipt/internal/verification/extractors/telebirr"
	"github.com/tise-genene/verifyreceipt/internal/verification/handler"
	"github.com/tise-genene/verifyreceipt/internal/verification/metrics"
	"github.com/tise-genene/verifyreceipt/internal/verification/orchestrator"
	"github.com/tise-genene/verifyreceipt/internal/verification/upstream"
	"github.com/tise-genene/verifyreceipt/pkg/platform/circuit"
	"github.com/tise-genene/verifyreceipt/pkg/platform/httputil"
	"github.com/tise-genene/verifyreceipt/pkg/platform/middleware/metadata"
	"github.com/tise-genene/verifyreceipt/pkg/platform/retry"
)

// localWindow is the window of the per-provider local extraction limits.
const localWindow = time.Minute

// App holds the wired service and its HTTP surface.
type App struct {
	Service  *orchestrator.Service
	Router   http.Handler
	Registry *prometheus.Registry
}

// New builds every component from cfg. Each App owns its own metrics registry.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.APIKey,
		upstream.WithTimeouts(cfg.Upstream.ConnectTimeout, cfg.Upstream.Timeout),
	)

	opts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
	}
	if cfg.CBE.Enabled {
		fetcher := newFetcher(cfg, cbe.BreakerName, logger, m)
		opts = append(opts, orchestrator.WithLocalExtractor(
			cbe.New(cfg.CBE.BaseURL, fetcher),
			bucket.New(cfg.CBE.LimitPerMinute, localWindow),
		))
	}
	if cfg.Telebirr.Enabled {
		fetcher := newFetcher(cfg, telebirr.BreakerName, logger, m)
		opts = append(opts, orchestrator.WithLocalExtractor(
			telebirr.New(cfg.Telebirr.BaseURL, fetcher),
			bucket.New(cfg.Telebirr.LimitPerMinute, localWindow),
		))
	}

	svc, err := orchestrator.New(client, cache.NewInMemoryCache(cfg.Cache.TTL), opts...)
	if err != nil {
		return nil, err
	}

	return &App{
		Service:  svc,
		Router:   newRouter(cfg, svc, logger, reg),
		Registry: reg,
	}, nil
}

func newFetcher(cfg *config.Config, breakerName string, logger *slog.Logger, m *metrics.Metrics) *extractors.Fetcher {
	breaker := circuit.New(breakerName,
		circuit.WithEnabled(cfg.Breaker.Enabled),
		circuit.WithFailureThreshold(cfg.Breaker.FailureThreshold),
		circuit.WithResetTimeout(cfg.Breaker.ResetTimeout),
	)
	return extractors.NewFetcher(breaker,
		extractors.WithTimeouts(cfg.Upstream.ConnectTimeout, cfg.Upstream.Timeout),
		extractors.WithRetryPolicy(retry.Policy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		}),
		extractors.WithLogger(logger),
		extractors.WithMetrics(m),
	)
}

func newRouter(cfg *config.Config, svc *orchestrator.Service, logger *slog.Logger, reg *prometheus.Registry) http.Handler {
	limiter := rlmiddleware.New(
		bucket.New(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		logger,
		rlmiddleware.WithDisabled(!cfg.RateLimit.Enabled),
		rlmiddleware.WithSkipPaths("/health", "/metrics"),
		rlmiddleware.WithMetrics(rlmetrics.New(reg)),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(metadata.ClientMetadata)
	r.Use(limiter.RateLimit)
	r.Use(middleware.Logger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	handler.New(svc, logger).Register(r)
	return r
}
