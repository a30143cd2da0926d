// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
)

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a refresh token row.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID.String(), token.UserID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if isUniqueViolation(err) {
		return oops.Code("REFRESH_TOKEN_DUPLICATE").Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("REFRESH_TOKEN_CREATE_FAILED").
			With("user_id", token.UserID).
			Wrap(err)
	}
	return nil
}

// DeleteByTokenHash removes the row matching tokenHash.
func (r *RefreshTokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("REFRESH_TOKEN_DELETE_FAILED").Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all of a user's refresh tokens.
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return oops.Code("REFRESH_TOKEN_DELETE_BY_USER_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry is before now.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_DELETE_EXPIRED_FAILED").Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
