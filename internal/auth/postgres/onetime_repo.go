// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
)

// tokenTable holds the queries shared by email_verifications and
// password_resets, which have the same shape.
type tokenTable struct {
	db    DB
	code  string // error code prefix
	table string

	insertSQL       string
	selectByHashSQL string
	deleteSQL       string
	deleteByUserSQL string
	deleteExpSQL    string
}

func newTokenTable(db DB, table, code string) tokenTable {
	return tokenTable{
		db:    db,
		code:  code,
		table: table,

		insertSQL: `INSERT INTO ` + table + ` (id, user_id, token_hash, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
		selectByHashSQL: `SELECT id, user_id, token_hash, expires_at, created_at
			FROM ` + table + ` WHERE token_hash = $1`,
		deleteSQL:       `DELETE FROM ` + table + ` WHERE id = $1`,
		deleteByUserSQL: `DELETE FROM ` + table + ` WHERE user_id = $1`,
		deleteExpSQL:    `DELETE FROM ` + table + ` WHERE expires_at < $1`,
	}
}

func (t tokenTable) create(ctx context.Context, tok *auth.OneTimeToken) error {
	_, err := t.db.Exec(ctx, t.insertSQL,
		tok.ID.String(), tok.UserID, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt)
	if err != nil {
		return oops.Code(t.code+"_CREATE_FAILED").
			With("table", t.table).
			With("user_id", tok.UserID).
			Wrap(err)
	}
	return nil
}

func (t tokenTable) getByTokenHash(ctx context.Context, tokenHash string) (auth.OneTimeToken, error) {
	var (
		tok   auth.OneTimeToken
		idStr string
	)
	err := t.db.QueryRow(ctx, t.selectByHashSQL, tokenHash).
		Scan(&idStr, &tok.UserID, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return tok, oops.Code(t.code + "_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return tok, oops.Code(t.code+"_GET_BY_TOKEN_FAILED").With("table", t.table).Wrap(err)
	}
	id, err := ulid.Parse(idStr)
	if err != nil {
		return tok, oops.Code(t.code+"_INVALID_ID").With("id", idStr).Wrap(err)
	}
	tok.ID = id
	return tok, nil
}

func (t tokenTable) delete(ctx context.Context, id ulid.ULID) error {
	result, err := t.db.Exec(ctx, t.deleteSQL, id.String())
	if err != nil {
		return oops.Code(t.code+"_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code(t.code+"_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func (t tokenTable) deleteByUser(ctx context.Context, userID int64) error {
	if _, err := t.db.Exec(ctx, t.deleteByUserSQL, userID); err != nil {
		return oops.Code(t.code+"_DELETE_BY_USER_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

func (t tokenTable) deleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := t.db.Exec(ctx, t.deleteExpSQL, now)
	if err != nil {
		return 0, oops.Code(t.code+"_DELETE_EXPIRED_FAILED").With("table", t.table).Wrap(err)
	}
	return result.RowsAffected(), nil
}

// EmailVerificationRepository implements auth.EmailVerificationRepository using PostgreSQL.
type EmailVerificationRepository struct {
	t tokenTable
}

// NewEmailVerificationRepository creates a new EmailVerificationRepository.
func NewEmailVerificationRepository(db DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{t: newTokenTable(db, "email_verifications", "VERIFICATION")}
}

// Create stores a new verification.
func (r *EmailVerificationRepository) Create(ctx context.Context, v *auth.EmailVerification) error {
	return r.t.create(ctx, &v.OneTimeToken)
}

// GetByTokenHash retrieves a verification by its token hash.
func (r *EmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.EmailVerification, error) {
	tok, err := r.t.getByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	return &auth.EmailVerification{OneTimeToken: tok}, nil
}

// Delete removes a verification.
func (r *EmailVerificationRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.t.delete(ctx, id)
}

// DeleteExpired removes expired verifications.
func (r *EmailVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.t.deleteExpired(ctx, now)
}

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	t tokenTable
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{t: newTokenTable(db, "password_resets", "RESET")}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	return r.t.create(ctx, &reset.OneTimeToken)
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	tok, err := r.t.getByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}
	return &auth.PasswordReset{OneTimeToken: tok}, nil
}

// Delete removes a reset request.
func (r *PasswordResetRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.t.delete(ctx, id)
}

// DeleteByUser removes all reset requests for a user.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID int64) error {
	return r.t.deleteByUser(ctx, userID)
}

// DeleteExpired removes expired reset requests.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.t.deleteExpired(ctx, now)
}

// Compile-time interface checks.
var (
	_ auth.EmailVerificationRepository = (*EmailVerificationRepository)(nil)
	_ auth.PasswordResetRepository     = (*PasswordResetRepository)(nil)
)
