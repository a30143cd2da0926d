// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package notify

import (
	"context"
	"log/slog"

	"github.com/formdeck/formdeck/internal/auth"
)

// LogSender stands in for SMTP when no mail host is configured. It records
// that a message would have been sent; the link itself is not logged.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that writes to logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements auth.Notifier.
func (s *LogSender) Send(ctx context.Context, kind auth.NotificationKind, email, _ string) error {
	s.logger.InfoContext(ctx, "smtp not configured, notification dropped",
		"kind", string(kind), "email", email)
	return nil
}

var _ auth.Notifier = (*LogSender)(nil)
