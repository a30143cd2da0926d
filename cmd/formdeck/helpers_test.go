// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formdeck/formdeck/internal/store"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":       "postgres://formdeck@localhost:5432/formdeck",
		"JWT_ACCESS_SECRET":  "test-access-secret",
		"JWT_REFRESH_SECRET": "test-refresh-secret",
		"LOG_LEVEL":          "error",
	}
}

func newPoolMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return mock
}

func connectTo(db Database) func(context.Context, store.PoolConfig, *slog.Logger) (Database, error) {
	return func(context.Context, store.PoolConfig, *slog.Logger) (Database, error) {
		return db, nil
	}
}

// execute runs the root command with args and returns its output.
func execute(ctx context.Context, deps *Deps, args ...string) (string, error) {
	if deps.LogWriter == nil {
		deps.LogWriter = io.Discard
	}
	cmd := newRootCmd(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}
