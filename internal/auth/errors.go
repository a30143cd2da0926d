// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated.
var ErrDuplicate = errors.New("duplicate")

// Error codes attached to oops errors returned by Service. The HTTP layer maps
// them to status codes; any other code is treated as an internal failure.
const (
	CodeInvalidInput        = "AUTH_INVALID_INPUT"
	CodeEmailTaken          = "AUTH_EMAIL_TAKEN"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked       = "AUTH_ACCOUNT_LOCKED"
	CodeTokenMissing        = "AUTH_TOKEN_MISSING"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeForbidden           = "AUTH_FORBIDDEN"
	CodeInvalidOneTimeToken = "AUTH_INVALID_TOKEN"
)
