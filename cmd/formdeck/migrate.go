// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/formdeck/formdeck/internal/store"
)

func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  `Apply, roll back or inspect the embedded schema migrations. With no subcommand, applies all pending migrations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return runMigrateUp(cmd, m)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return runMigrateUp(cmd, m)
			})
		},
	})

	var confirmed bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all FormDeck tables)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops every table; rerun with --yes")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirmed, "yes", false, "confirm dropping all tables")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back -N",
		Long:  `Apply N migrations, or roll back -N. Put -- before a negative N so it is not read as a flag.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Migrated %d step(s)\n", n)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				return runMigrateStatus(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long: `Record VERSION as the current schema version and clear the dirty flag.
Use this after fixing a migration that failed halfway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseVersionArg(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

// withMigrator opens a migrator from the loaded configuration, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) (err error) {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	setupLogging(cfg, deps)

	m, err := deps.OpenMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, m Migrator) error {
	if err := m.Up(); err != nil {
		return err
	}
	st, err := m.Status()
	if err != nil {
		return err
	}
	cmd.Printf("Schema at version %d\n", st.Version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m Migrator) error {
	st, err := m.Status()
	if err != nil {
		return err
	}
	state := "clean"
	if st.Dirty {
		state = "DIRTY (fix the failed migration, then run migrate force)"
	}
	cmd.Printf("Current version: %d (%s)\n", st.Version, state)
	cmd.Printf("Applied: %s\n", formatVersions(st.Applied))
	cmd.Printf("Pending: %s\n", formatVersions(st.Pending))
	return nil
}

// migrateUp applies pending migrations at serve startup.
func migrateUp(deps *Deps, databaseURL string, logger *slog.Logger) (err error) {
	m, err := deps.OpenMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	st, err := m.Status()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", st.Version)
	return nil
}

func formatVersions(versions []uint) string {
	if len(versions) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(versions))
	for _, v := range versions {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, ", ")
}

// parseVersionArg parses a signed integer argument.
func parseVersionArg(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("invalid version %q: must be an integer", s)
	}
	return v, nil
}
