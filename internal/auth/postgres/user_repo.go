// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
)

const userColumns = `id, email, password_hash, organization_id, role, is_verified,
	failed_attempts, locked_until, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and sets user.ID from the generated key.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (
			email, password_hash, organization_id, role, is_verified,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		user.Email,
		user.PasswordHash,
		user.OrganizationID,
		string(user.Role),
		user.IsVerified,
		user.FailedAttempts,
		user.LockedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return oops.Code("USER_DUPLICATE_EMAIL").Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("organization_id", user.OrganizationID).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").Wrap(err)
	}
	return user, nil
}

// RecordLoginFailure increments failed_attempts and sets locked_until once the
// new count reaches threshold, in a single statement so concurrent failures
// cannot lose an increment.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id int64, threshold int, lockUntil time.Time) (auth.LoginFailure, error) {
	var failure auth.LoginFailure
	err := r.db.QueryRow(ctx, `
		UPDATE users SET
			failed_attempts = failed_attempts + 1,
			locked_until = CASE
				WHEN failed_attempts + 1 >= $2::int THEN $3::timestamptz
				ELSE locked_until
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING failed_attempts, locked_until
	`, id, threshold, lockUntil).Scan(&failure.FailedAttempts, &failure.LockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.LoginFailure{}, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return auth.LoginFailure{}, oops.Code("USER_RECORD_FAILURE_FAILED").With("id", id).Wrap(err)
	}
	return failure, nil
}

// RecordLoginSuccess clears the failure counter and any lockout.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id int64) error {
	return r.update(ctx, "USER_RECORD_SUCCESS_FAILED", id, `
		UPDATE users SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
}

// UpdatePassword replaces the password hash and clears lockout state.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.update(ctx, "USER_UPDATE_PASSWORD_FAILED", id, `
		UPDATE users SET
			password_hash = $2,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id, passwordHash)
}

// MarkVerified sets is_verified.
func (r *UserRepository) MarkVerified(ctx context.Context, id int64) error {
	return r.update(ctx, "USER_MARK_VERIFIED_FAILED", id, `
		UPDATE users SET is_verified = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *UserRepository) update(ctx context.Context, code string, id int64, sql string, args ...any) error {
	result, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).With("id", id).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser leaves pgx.ErrNoRows unwrapped for the caller.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.OrganizationID,
		&role,
		&u.IsVerified,
		&u.FailedAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers add context
		}
		return nil, oops.Code("USER_SCAN_FAILED").Wrap(err)
	}
	if u.Role, err = auth.ParseRole(role); err != nil {
		return nil, oops.Code("USER_SCAN_FAILED").With("user_id", u.ID).Wrap(err)
	}
	return &u, nil
}

var _ auth.UserRepository = (*UserRepository)(nil)
