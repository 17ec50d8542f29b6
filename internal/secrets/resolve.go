// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

// Package secrets resolves provider credentials from the OS keyring with
// environment variable fallback.
package secrets

import (
	"log/slog"
	"os"

	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// KeyringService is the service name under which Rakshak stores secrets.
const KeyringService = "rakshak"

// envVarByProvider maps provider names to their conventional API key
// environment variables.
var envVarByProvider = map[string]string{
	"google":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// ResolveAPIKey returns the API key for a provider. Resolution order:
// the explicit config value, the OS keyring (service "rakshak", key
// "<provider>_api_key"), then the provider's conventional environment
// variable. An empty result is not an error; the caller decides whether
// the provider is mandatory.
func ResolveAPIKey(store Store, provider, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	if store != nil {
		val, err := store.Retrieve(KeyringService, provider+"_api_key")
		if err == nil && val != "" {
			return val, nil
		}
		if err != nil && !rakerr.HasCode(err, rakerr.CodeSecretNotFound) {
			// Keyring backend broken (no D-Bus, locked keychain). Fall
			// through to the environment but tell the operator.
			slog.Debug("keyring lookup failed, falling back to environment",
				"provider", provider, "error", err)
		}
	}

	envVar, ok := envVarByProvider[provider]
	if !ok {
		return "", rakerr.Errorf(rakerr.CodeSecretResolveFailure,
			"no known credential source for provider %q", provider)
	}
	return os.Getenv(envVar), nil
}
