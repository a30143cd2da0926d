// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshToken is the stored record of an issued refresh token.
// The ID equals the token_id claim embedded in the signed token.
type RefreshToken struct {
	ID        ulid.ULID
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewRefreshToken creates a RefreshToken row for an issued token.
func NewRefreshToken(userID int64, issued *IssuedRefreshToken) (*RefreshToken, error) {
	if userID <= 0 {
		return nil, oops.Code("REFRESH_INVALID_USER").Errorf("user ID must be positive")
	}
	if issued == nil || issued.Token == "" {
		return nil, oops.Code("REFRESH_INVALID_TOKEN").Errorf("issued token cannot be empty")
	}
	return &RefreshToken{
		ID:        issued.TokenID,
		UserID:    userID,
		TokenHash: HashToken(issued.Token),
		ExpiresAt: issued.ExpiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new refresh token.
	Create(ctx context.Context, token *RefreshToken) error

	// DeleteByTokenHash removes the token with the given hash.
	// Returns ErrNotFound if no such token exists.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByUser removes all refresh tokens for a user.
	DeleteByUser(ctx context.Context, userID int64) error

	// DeleteExpired removes tokens that expired before now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
