// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package web exposes the auth service over HTTP with gin.
//
// Routes live under /api/auth. Errors are rendered as {"error": "..."}; the
// status comes from the oops code on the error, and anything without a
// client-facing code becomes a logged 500 with a generic message.
package web
