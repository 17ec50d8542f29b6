// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/rakshak-dev/rakshak/internal/config"
	"github.com/rakshak-dev/rakshak/internal/reasoning"
	"github.com/rakshak-dev/rakshak/internal/reasoning/anthropic"
	"github.com/rakshak-dev/rakshak/internal/reasoning/google"
	"github.com/rakshak-dev/rakshak/internal/reasoning/openai"
	"github.com/rakshak-dev/rakshak/internal/secrets"
	"github.com/rakshak-dev/rakshak/internal/store"
	"github.com/rakshak-dev/rakshak/internal/store/sqlite"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// engine bundles the wired subsystems shared by the start and simulate
// commands.
type engine struct {
	registry *reasoning.Registry
	throttle *reasoning.Throttle
	gateway  *reasoning.Gateway
	sessions store.SessionStore
	cases    store.CaseStore
}

// close releases provider and storage resources.
func (e *engine) close() {
	if err := e.registry.Close(); err != nil {
		slog.Warn("closing providers", "error", err)
	}
	if e.cases != nil {
		if err := e.cases.Close(); err != nil {
			slog.Warn("closing case store", "error", err)
		}
	}
}

// buildEngine wires providers, the reasoning gateway, and storage from
// config. Providers without a resolvable API key are skipped with a
// warning; with no usable provider at all the gateway still runs and
// serves canned in-persona fallback replies.
func buildEngine(cfg *config.Config) (*engine, error) {
	keyStore := secrets.NewKeyringStore()
	registry := reasoning.NewRegistry()

	for name, pc := range cfg.Providers {
		apiKey, err := secrets.ResolveAPIKey(keyStore, name, pc.APIKey)
		if err != nil || apiKey == "" {
			slog.Warn("skipping provider: no API key", "provider", name, "error", err)
			continue
		}

		var (
			p    reasoning.Provider
			perr error
		)
		switch name {
		case "google":
			p, perr = google.New(google.Config{
				APIKey:         apiKey,
				ThinkingBudget: int32(pc.ThinkingBudget),
			})
		case "anthropic":
			p, perr = anthropic.New(anthropic.Config{APIKey: apiKey, BaseURL: pc.Endpoint})
		case "openai":
			p, perr = openai.New(openai.Config{APIKey: apiKey, BaseURL: pc.Endpoint})
		default:
			// Unknown names are rejected by config validation already.
			continue
		}
		if perr != nil {
			slog.Warn("skipping provider: init failed", "provider", name, "error", perr)
			continue
		}

		registry.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}

	if err := registry.SetDefault(cfg.Models.Default); err != nil {
		slog.Warn("default model's provider is not usable; replies degrade to the canned fallback",
			"default", cfg.Models.Default, "error", err)
	}

	if len(cfg.Models.Failover) > 0 {
		if err := registry.SetFailover(cfg.Models.Failover); err != nil {
			slog.Warn("failover chain references unusable providers", "error", err)
		}
	}

	throttle := reasoning.NewThrottle()
	gateway, err := reasoning.NewGateway(reasoning.GatewayConfig{
		Registry: registry,
		Throttle: throttle,
		Retries:  cfg.Models.Retries,
	})
	if err != nil {
		return nil, rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "building reasoning gateway")
	}

	eng := &engine{
		registry: registry,
		throttle: throttle,
		gateway:  gateway,
		sessions: store.NewMemorySessionStore(),
	}

	if cfg.Storage.Backend == "sqlite" {
		cases, err := sqlite.NewCaseStore(cfg.Storage.Path)
		if err != nil {
			return nil, rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "opening case store")
		}
		eng.cases = cases
	}

	return eng, nil
}

// resolveTelegramToken finds the bot token for the Telegram relay:
// config value, then keyring, then TELEGRAM_BOT_TOKEN. Empty means the
// channel is disabled.
func resolveTelegramToken(cfg *config.Config) string {
	if cfg.Channel.Telegram.BotToken != "" {
		return cfg.Channel.Telegram.BotToken
	}
	if val, err := secrets.NewKeyringStore().Retrieve(secrets.KeyringService, "telegram_bot_token"); err == nil && val != "" {
		return val
	}
	return os.Getenv("TELEGRAM_BOT_TOKEN")
}
