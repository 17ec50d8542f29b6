// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package config loads and validates the Rakshak configuration.
package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// Config is the top-level Rakshak configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Engagement EngagementConfig          `mapstructure:"engagement"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Channel    ChannelConfig             `mapstructure:"channel"`
}

// ChannelConfig holds inbound messaging channel settings.
type ChannelConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig configures the Telegram bot relay. An empty BotToken
// disables the channel; the keyring key "telegram_bot_token" is consulted
// as a fallback at startup.
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// NetworkingConfig controls how Rakshak listens for connections.
type NetworkingConfig struct {
	Listen string `mapstructure:"listen"`
}

// ProviderConfig holds credentials and endpoint for a reasoning provider.
// An empty APIKey falls back to the OS keyring, then the provider's
// conventional environment variable.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
	// ThinkingBudget caps internal reasoning tokens for providers that
	// support it (google). Zero disables it.
	ThinkingBudget int `mapstructure:"thinking_budget"`
}

// ModelsConfig controls model selection and failover.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
	// Retries is the number of additional providers tried after the
	// first failure before falling back to the canned persona reply.
	Retries int `mapstructure:"retries"`
}

// EngagementConfig controls the per-session engagement loop.
type EngagementConfig struct {
	// TypingDelayMS is the debounce window (in milliseconds) between the
	// last adversary fragment and the generation trigger.
	TypingDelayMS int `mapstructure:"typing_delay_ms"`
	// DisengageAfter closes a session after this many consecutive agent
	// turns that yielded no new intelligence. Zero engages indefinitely.
	DisengageAfter int `mapstructure:"disengage_after"`
}

// StorageConfig selects the case archive backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is the SQLite database file for the case archive.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix RAKSHAK_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("networking.listen", "127.0.0.1:18990")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "rakshak-cases.db")
	v.SetDefault("models.default", "google/gemini-2.5-flash")
	v.SetDefault("models.retries", 1)
	v.SetDefault("engagement.typing_delay_ms", 1800)
	v.SetDefault("engagement.disengage_after", 0)

	// Environment
	v.SetEnvPrefix("RAKSHAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, rakerr.Errorf(rakerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, rakerr.Errorf(rakerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateEngagement()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}
	_ = host // host can be empty (e.g., ":8080"), which is valid

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true, "memory": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, memory], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: storage.path must not be empty for the sqlite backend"))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default == "" {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue, "config: models.default must not be empty"))
	} else if !strings.Contains(c.Models.Default, "/") {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: models.default must be in \"provider/model\" format, got %q",
			c.Models.Default,
		))
	} else if c.Providers != nil {
		// Only cross-reference providers when the providers section exists
		// in config. A nil map means no providers section was configured
		// (e.g., defaults only on fresh install), which is valid.
		providerName := providerFromModel(c.Models.Default)
		if _, ok := c.Providers[providerName]; !ok {
			errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
				"config: models.default %q references provider %q which is not configured",
				c.Models.Default, providerName,
			))
		}
	}

	for i, model := range c.Models.Failover {
		if !strings.Contains(model, "/") {
			errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
				"config: models.failover[%d] must be in \"provider/model\" format, got %q",
				i, model,
			))
			continue
		}
		if c.Providers != nil {
			providerName := providerFromModel(model)
			if _, ok := c.Providers[providerName]; !ok {
				errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
					"config: models.failover[%d] %q references provider %q which is not configured",
					i, model, providerName,
				))
			}
		}
	}

	for name := range c.Providers {
		switch name {
		case "google", "anthropic", "openai":
		default:
			errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
				"config: providers.%s is not a known provider (known: google, anthropic, openai)",
				name,
			))
		}
	}

	if c.Models.Retries < 0 {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: models.retries must not be negative, got %d",
			c.Models.Retries,
		))
	}

	return errs
}

func (c *Config) validateEngagement() []error {
	var errs []error

	if c.Engagement.TypingDelayMS < 0 {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: engagement.typing_delay_ms must not be negative, got %d",
			c.Engagement.TypingDelayMS,
		))
	}

	if c.Engagement.DisengageAfter < 0 {
		errs = append(errs, rakerr.Errorf(rakerr.CodeConfigValidateInvalidValue,
			"config: engagement.disengage_after must not be negative, got %d",
			c.Engagement.DisengageAfter,
		))
	}

	return errs
}

// providerFromModel extracts the provider prefix from a "provider/model" string.
func providerFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}
