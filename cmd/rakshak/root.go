// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root rakshak command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rakshak",
		Short:         "Rakshak — autonomous scam engagement engine",
		Long:          "Rakshak keeps confirmed scammers talking with an AI persona while harvesting payment indicators for investigators.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(verbose)
			return nil
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newSimulateCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// setupLogging installs the process-wide slog handler. Text to stderr;
// verbose switches to debug level.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
