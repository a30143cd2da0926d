// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// One-time token configuration.
const (
	OneTimeTokenBytes       = 32 // 32 bytes = 64 hex chars
	EmailVerificationExpiry = 24 * time.Hour
	PasswordResetExpiry     = time.Hour
)

// OneTimeToken is a stored single-use token. Only the SHA-256 hash of the
// plaintext token is persisted; the plaintext is handed to the notifier.
type OneTimeToken struct {
	ID        ulid.ULID
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpiredAt returns true if the token is expired at t.
func (t *OneTimeToken) IsExpiredAt(at time.Time) bool {
	return at.After(t.ExpiresAt)
}

// EmailVerification is a pending email verification.
type EmailVerification struct {
	OneTimeToken
}

// PasswordReset is a pending password reset request.
type PasswordReset struct {
	OneTimeToken
}

// NewEmailVerification creates a validated EmailVerification.
func NewEmailVerification(userID int64, tokenHash string, expiresAt time.Time) (*EmailVerification, error) {
	tok, err := newOneTimeToken("VERIFICATION", userID, tokenHash, expiresAt)
	if err != nil {
		return nil, err
	}
	return &EmailVerification{OneTimeToken: tok}, nil
}

// NewPasswordReset creates a validated PasswordReset.
func NewPasswordReset(userID int64, tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	tok, err := newOneTimeToken("RESET", userID, tokenHash, expiresAt)
	if err != nil {
		return nil, err
	}
	return &PasswordReset{OneTimeToken: tok}, nil
}

func newOneTimeToken(kind string, userID int64, tokenHash string, expiresAt time.Time) (OneTimeToken, error) {
	if userID <= 0 {
		return OneTimeToken{}, oops.Code(kind+"_INVALID_USER").Errorf("user ID must be positive")
	}
	if tokenHash == "" {
		return OneTimeToken{}, oops.Code(kind+"_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return OneTimeToken{}, oops.Code(kind+"_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return OneTimeToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// GenerateOneTimeToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
func GenerateOneTimeToken() (token, hash string, err error) {
	tokenBytes := make([]byte, OneTimeTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("ONE_TIME_TOKEN_GENERATE_FAILED").
			With("requested_bytes", OneTimeTokenBytes).
			Wrap(err)
	}
	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken computes the hex-encoded SHA-256 hash of a token.
// It is used for one-time tokens and refresh tokens alike.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// EmailVerificationRepository manages email verification persistence.
type EmailVerificationRepository interface {
	// Create stores a new verification.
	Create(ctx context.Context, v *EmailVerification) error

	// GetByTokenHash retrieves a verification by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*EmailVerification, error)

	// Delete removes a verification. Returns ErrNotFound if it was already consumed.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes verifications that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new password reset request.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash retrieves a reset request by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// Delete removes a reset request. Returns ErrNotFound if it was already consumed.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all reset requests for a user.
	DeleteByUser(ctx context.Context, userID int64) error

	// DeleteExpired removes reset requests that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
