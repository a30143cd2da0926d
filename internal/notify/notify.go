// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package notify delivers verification and password-reset links.
package notify

import (
	"net/url"
	"strings"

	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
)

var paths = map[auth.NotificationKind]string{
	auth.NotifyVerifyEmail:   "/verify-email",
	auth.NotifyPasswordReset: "/reset-password",
}

var subjects = map[auth.NotificationKind]string{
	auth.NotifyVerifyEmail:   "Verify your FormDeck email address",
	auth.NotifyPasswordReset: "Reset your FormDeck password",
}

// Link builds the frontend URL that carries token for kind, for example
// https://app.example.com/verify-email?token=abc.
func Link(frontendURL string, kind auth.NotificationKind, token string) (string, error) {
	path, ok := paths[kind]
	if !ok {
		return "", oops.Code("NOTIFY_UNKNOWN_KIND").With("kind", string(kind)).Errorf("unknown notification kind")
	}
	base := strings.TrimSpace(frontendURL)
	if base == "" {
		return "", oops.Code("NOTIFY_CONFIG_INVALID").Errorf("frontend url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", oops.Code("NOTIFY_CONFIG_INVALID").With("frontend_url", base).Wrap(err)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + path
	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
