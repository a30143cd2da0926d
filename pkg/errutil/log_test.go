// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formdeck/formdeck/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("AUTH_LOGIN_FAILED").
		With("user_id", 7).
		Errorf("verify password")

	errutil.LogError(logger, "login failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "login failed", entry["msg"])
	assert.Equal(t, "AUTH_LOGIN_FAILED", entry["code"])
	assert.Contains(t, entry, "context")
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}

func TestCode(t *testing.T) {
	assert.Equal(t, "X", errutil.Code(oops.Code("X").Errorf("boom")))
	assert.Equal(t, "X", errutil.Code(oops.Code("X").Wrap(errors.New("boom"))))
	assert.Empty(t, errutil.Code(oops.Errorf("no code")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
	assert.Empty(t, errutil.Code(nil))
}
