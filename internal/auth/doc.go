// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package auth provides authentication primitives for FormDeck.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a validated email and password hash
//   - NewRefreshToken - creates a RefreshToken row for an issued refresh token
//   - NewEmailVerification - creates a one-time email verification record
//   - NewPasswordReset - creates a one-time password reset record
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Tokens
//
// TokenIssuer signs short-lived access tokens and long-lived refresh tokens
// with distinct secrets. Verification failures are reported with a single
// error code regardless of cause.
//
// # Services
//
// Service coordinates register, login, refresh, email verification, password
// reset and logout against the repository interfaces declared here. It holds
// no state between calls; all state lives in the repositories.
package auth
