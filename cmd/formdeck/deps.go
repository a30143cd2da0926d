// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/formdeck/formdeck/internal/auth/postgres"
	"github.com/formdeck/formdeck/internal/store"
)

// Database is the pool surface the commands use. *pgxpool.Pool implements it.
type Database interface {
	postgres.DB
	Ping(ctx context.Context) error
	Close()
}

// Migrator is the schema runner surface used by the migrate command.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// Deps holds injectable collaborators. Nil fields use the defaults.
type Deps struct {
	// Connect opens the database. Default: store.Connect.
	Connect func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Database, error)

	// OpenMigrator opens the schema migrator. Default: store.NewMigrator.
	OpenMigrator func(databaseURL string) (Migrator, error)

	// Environ replaces the process environment for config loading.
	Environ map[string]string

	// LogWriter receives log output. Default: os.Stderr.
	LogWriter io.Writer

	// OnServing is called once both listeners are bound.
	OnServing func(httpAddr, metricsAddr string)
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.Connect == nil {
		out.Connect = func(ctx context.Context, cfg store.PoolConfig, logger *slog.Logger) (Database, error) {
			pool, err := store.Connect(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}
	}
	if out.OpenMigrator == nil {
		out.OpenMigrator = func(databaseURL string) (Migrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	return &out
}
