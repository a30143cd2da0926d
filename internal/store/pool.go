// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package store owns the FormDeck PostgreSQL schema and connection pool.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultConnectTimeout bounds how long Connect keeps retrying.
const DefaultConnectTimeout = 30 * time.Second

// Backoff bounds for the startup connection loop.
const (
	connectBackoffBase = 250 * time.Millisecond
	connectBackoffCap  = 5 * time.Second
)

// PoolConfig configures Connect.
type PoolConfig struct {
	URL            string
	ConnectTimeout time.Duration
	MaxConns       int32
}

// Connect opens a connection pool and waits until the database answers a
// ping. Failed pings are retried with capped exponential backoff until
// ConnectTimeout elapses or ctx is cancelled.
func Connect(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	backoff := retry.WithCappedDuration(connectBackoffCap, retry.NewExponential(connectBackoffBase))

	var (
		pool    *pgxpool.Pool
		attempt int
	)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.WarnContext(ctx, "database not ready, retrying",
				"attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("attempts", attempt).
			With("timeout", timeout.String()).
			Wrap(err)
	}

	logger.InfoContext(ctx, "connected to database",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"attempts", attempt)
	return pool, nil
}
