package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tise-genene/verifyreceipt/internal/app"
	"github.com/tise-genene/verifyreceipt/internal/platform/config"
	"github.com/tise-genene/verifyreceipt/internal/platform/httpserver"
	"github.com/tise-genene/verifyreceipt/internal/platform/logger"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	log.Info("starting verifyreceipt",
		"upstream", cfg.Upstream.BaseURL,
		"local_cbe", cfg.CBE.Enabled,
		"local_telebirr", cfg.Telebirr.Enabled,
		"rate_limit_enabled", cfg.RateLimit.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(cfg.Server.Addr, a.Router, cfg.Upstream.Timeout)
	return httpserver.Run(ctx, srv, log, cfg.Server.ShutdownTimeout)
}
