// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rakshak-dev/rakshak/internal/channel/telegram"
	"github.com/rakshak-dev/rakshak/internal/config"
	"github.com/rakshak-dev/rakshak/internal/engage"
	"github.com/rakshak-dev/rakshak/internal/server"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the rakshak engagement engine",
		Long:  "Load configuration, wire the reasoning gateway and stores, and serve the HTTP API.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = config.BootstrapConfig()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "loading config")
	}
	config.WarnInsecurePermissions(cfgPath)

	// Apply any flag/env overrides that Viper resolved.
	if listen := viper.GetString("networking.listen"); listen != "" {
		cfg.Networking.Listen = listen
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	manager, err := engage.NewManager(engage.ManagerConfig{
		Store:          eng.sessions,
		Cases:          eng.cases,
		Gateway:        eng.gateway,
		TypingDelay:    time.Duration(cfg.Engagement.TypingDelayMS) * time.Millisecond,
		DisengageAfter: cfg.Engagement.DisengageAfter,
	})
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "building engagement manager")
	}

	srv, err := server.New(server.Config{ListenAddr: cfg.Networking.Listen})
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "building server")
	}

	svc, err := server.NewServices(server.ServicesConfig{
		Manager:  manager,
		Sessions: eng.sessions,
		Cases:    eng.cases,
		Throttle: eng.throttle,
		Registry: eng.registry,
	})
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "building services")
	}
	srv.RegisterServices(svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The Telegram relay is optional; a bad token should not keep the
	// HTTP API from serving.
	if token := resolveTelegramToken(cfg); token != "" {
		if err := telegram.NewValidator().ValidateToken(ctx, token); err != nil {
			slog.Warn("telegram bot token validation failed; relay disabled", "error", err)
		} else {
			slog.Info("telegram relay token verified")
		}
	}

	slog.Info("rakshak listening", "addr", cfg.Networking.Listen)
	return srv.Start(ctx)
}
