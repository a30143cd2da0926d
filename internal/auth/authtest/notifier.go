// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package authtest

import (
	"context"
	"sync"

	"github.com/formdeck/formdeck/internal/auth"
)

// Notification is a message captured by Notifier.
type Notification struct {
	Kind  auth.NotificationKind
	Email string
	Token string
}

// Notifier records every Send call. If Err is set, Send returns it without recording.
type Notifier struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

// Send records the notification.
func (n *Notifier) Send(_ context.Context, kind auth.NotificationKind, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, Notification{Kind: kind, Email: email, Token: token})
	return nil
}

// Sent returns a copy of all recorded notifications.
func (n *Notifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// LastToken returns the most recent token of kind sent to email, or "".
func (n *Notifier) LastToken(kind auth.NotificationKind, email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind && n.sent[i].Email == email {
			return n.sent[i].Token
		}
	}
	return ""
}

var _ auth.Notifier = (*Notifier)(nil)
