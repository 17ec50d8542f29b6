// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rakshak-dev/rakshak/internal/secrets"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage provider API keys in the OS keyring",
		Long:  "Store and delete provider API keys under the rakshak service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> <api-key>",
		Short: "Store a provider API key",
		Long:  "Store an API key for a provider (google, anthropic, openai) in the OS keyring.",
		Args:  cobra.ExactArgs(2),
		RunE:  runSecretSet,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider>",
		Short: "Delete a provider API key",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	provider, apiKey := args[0], args[1]
	store := secretStoreFactory()

	if err := store.Store(secrets.KeyringService, provider+"_api_key", apiKey); err != nil {
		return rakerr.Errorf(rakerr.CodeSecretStoreFailure, "storing key for provider %q: %w", provider, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored API key for provider: %s\n", provider)
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	provider := args[0]
	store := secretStoreFactory()

	if err := store.Delete(secrets.KeyringService, provider+"_api_key"); err != nil {
		if rakerr.HasCode(err, rakerr.CodeSecretNotFound) {
			return rakerr.Errorf(rakerr.CodeSecretNotFound, "no stored key for provider %q", provider)
		}
		return rakerr.Errorf(rakerr.CodeSecretDeleteFailure, "deleting key for provider %q: %w", provider, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted API key for provider: %s\n", provider)
	return nil
}
