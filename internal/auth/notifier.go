// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import "context"

// NotificationKind identifies which one-time token email to send.
type NotificationKind string

// Notification kinds.
const (
	NotifyVerifyEmail   NotificationKind = "verify"
	NotifyPasswordReset NotificationKind = "reset"
)

// Notifier delivers one-time tokens to users. Delivery is outside this
// package; Service only hands over the address and plaintext token.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, email, token string) error
}

// EventRecorder receives authentication outcomes for metrics.
type EventRecorder interface {
	RecordAuthEvent(operation, outcome string)
	RecordLockout()
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, string) {}
func (noopRecorder) RecordLockout()                 {}
