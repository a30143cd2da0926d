// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/formdeck/formdeck/internal/config"
	"github.com/formdeck/formdeck/internal/logging"
)

const serviceName = "formdeck"

// NewRootCmd creates the root command for the FormDeck CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "formdeck",
		Short: "FormDeck authentication service",
		Long: `FormDeck authentication service: registration, login with lockout,
JWT access and refresh tokens, email verification and password reset.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newPruneCmd(deps))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads configuration for cmd. Validation is left to the caller
// because migrate needs less than serve.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		File:    config.ResolveFile(config.FileFlag(cmd.Flags()), deps.Environ),
		Flags:   cmd.Flags(),
		Environ: deps.Environ,
	})
	if err != nil {
		return nil, oops.With("operation", "load config").Wrap(err)
	}
	return cfg, nil
}

// setupLogging installs the process logger described by cfg.
func setupLogging(cfg *config.Config, deps *Deps) *slog.Logger {
	// Validate has already checked the level.
	level, _ := logging.ParseLevel(cfg.Log.Level) //nolint:errcheck // validated
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  deps.LogWriter,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("formdeck %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
