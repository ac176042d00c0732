package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tise-genene/verifyreceipt/internal/app"
	"github.com/tise-genene/verifyreceipt/internal/platform/config"
	"github.com/tise-genene/verifyreceipt/internal/platform/httpserver"
	"github.com/tise-genene/verifyreceipt/internal/platform/logger"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the verification HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)

			a, err := app.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := httpserver.New(cfg.Server.Addr, a.Router, cfg.Upstream.Timeout)
			return httpserver.Run(ctx, srv, log, cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides PORT (e.g. :9090)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.FromLookup(os.Getenv)
}
