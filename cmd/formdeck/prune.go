// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/internal/store"
)

func newPruneCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete expired refresh tokens and one-time tokens",
		Long: `Delete refresh tokens, email verifications and password resets whose
expiry has passed. Safe to run from cron while the service is serving.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd, deps)
		},
	}
}

func runPrune(cmd *cobra.Command, deps *Deps) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := setupLogging(cfg, deps)

	db, err := deps.Connect(cmd.Context(), store.PoolConfig{
		URL:            cfg.Database.URL,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	issuer, err := auth.NewTokenIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	if err != nil {
		return err
	}
	svc, err := buildService(cfg, db, issuer, logger, nil)
	if err != nil {
		return err
	}

	res, err := svc.PruneExpired(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("pruned expired tokens",
		"refresh_tokens", res.RefreshTokens,
		"email_verifications", res.EmailVerifications,
		"password_resets", res.PasswordResets)
	cmd.Printf("Pruned %d refresh tokens, %d email verifications, %d password resets\n",
		res.RefreshTokens, res.EmailVerifications, res.PasswordResets)
	return nil
}
