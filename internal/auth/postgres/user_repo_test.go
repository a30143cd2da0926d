// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/internal/auth/postgres"
	"github.com/formdeck/formdeck/pkg/errutil"
)

var userColumns = []string{
	"id", "email", "password_hash", "organization_id", "role", "is_verified",
	"failed_attempts", "locked_until", "created_at", "updated_at",
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	newUser := func() *auth.User {
		return &auth.User{
			Email:          "a@x.com",
			PasswordHash:   "hash",
			OrganizationID: 3,
			Role:           auth.RoleAdmin,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantID    int64
		wantCode  string
		wantIs    error
	}{
		{
			name: "assigns generated id",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs("a@x.com", "hash", int64(3), "Admin", false, 0,
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
			},
			wantID: 42,
		},
		{
			name: "unique violation maps to duplicate",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantCode: "USER_DUPLICATE_EMAIL",
			wantIs:   auth.ErrDuplicate,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO users`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			user := newUser()
			err := postgres.NewUserRepository(mock).Create(context.Background(), user)

			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, user.ID)
		})
	}
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locked := now.Add(30 * time.Minute)

	t.Run("scans all columns", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("a@x.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(int64(1), "a@x.com", "hash", int64(3), "Editor", true, 5, &locked, now, now))

		u, err := postgres.NewUserRepository(mock).GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.ID)
		assert.Equal(t, int64(3), u.OrganizationID)
		assert.Equal(t, auth.RoleEditor, u.Role)
		assert.True(t, u.IsVerified)
		assert.Equal(t, 5, u.FailedAttempts)
		require.NotNil(t, u.LockedUntil)
		assert.True(t, locked.Equal(*u.LockedUntil))
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("nobody@x.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := postgres.NewUserRepository(mock).GetByEmail(ctx, "nobody@x.com")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("unregistered stored role is rejected", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("a@x.com").
			WillReturnRows(pgxmock.NewRows(userColumns).
				AddRow(int64(1), "a@x.com", "hash", int64(3), "Owner", false, 0, &locked, now, now))

		u, err := postgres.NewUserRepository(mock).GetByEmail(ctx, "a@x.com")
		require.Error(t, err)
		assert.Nil(t, u)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ROLE_INVALID")
		errutil.AssertErrorContext(t, err, "role", "Owner")
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email = \$1`).
			WithArgs("a@x.com").
			WillReturnError(errors.New("connection reset"))

		_, err := postgres.NewUserRepository(mock).GetByEmail(ctx, "a@x.com")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_RecordLoginFailure(t *testing.T) {
	ctx := context.Background()
	lockUntil := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("returns post-increment state", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE users SET\s+failed_attempts = failed_attempts \+ 1`).
			WithArgs(int64(1), auth.LockoutThreshold, lockUntil).
			WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).
				AddRow(5, &lockUntil))

		failure, err := postgres.NewUserRepository(mock).
			RecordLoginFailure(ctx, 1, auth.LockoutThreshold, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, 5, failure.FailedAttempts)
		require.NotNil(t, failure.LockedUntil)
		assert.True(t, lockUntil.Equal(*failure.LockedUntil))
	})

	t.Run("below threshold leaves lock unset", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE users SET\s+failed_attempts = failed_attempts \+ 1`).
			WithArgs(int64(1), auth.LockoutThreshold, lockUntil).
			WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).
				AddRow(2, (*time.Time)(nil)))

		failure, err := postgres.NewUserRepository(mock).
			RecordLoginFailure(ctx, 1, auth.LockoutThreshold, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, 2, failure.FailedAttempts)
		assert.Nil(t, failure.LockedUntil)
	})

	t.Run("unknown user", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`UPDATE users SET`).
			WithArgs(int64(1), auth.LockoutThreshold, lockUntil).
			WillReturnError(pgx.ErrNoRows)

		_, err := postgres.NewUserRepository(mock).
			RecordLoginFailure(ctx, 1, auth.LockoutThreshold, lockUntil)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_Updates(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		pattern  string
		args     []any
		call     func(r *postgres.UserRepository) error
		wantCode string
	}{
		{
			name:    "record login success",
			pattern: `UPDATE users SET failed_attempts = 0, locked_until = NULL`,
			args:    []any{int64(1)},
			call: func(r *postgres.UserRepository) error {
				return r.RecordLoginSuccess(ctx, 1)
			},
			wantCode: "USER_RECORD_SUCCESS_FAILED",
		},
		{
			name:    "update password",
			pattern: `UPDATE users SET\s+password_hash = \$2,\s+failed_attempts = 0,\s+locked_until = NULL`,
			args:    []any{int64(1), "newhash"},
			call: func(r *postgres.UserRepository) error {
				return r.UpdatePassword(ctx, 1, "newhash")
			},
			wantCode: "USER_UPDATE_PASSWORD_FAILED",
		},
		{
			name:    "mark verified",
			pattern: `UPDATE users SET is_verified = TRUE`,
			args:    []any{int64(1)},
			call: func(r *postgres.UserRepository) error {
				return r.MarkVerified(ctx, 1)
			},
			wantCode: "USER_MARK_VERIFIED_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Run("success", func(t *testing.T) {
				mock := newMock(t)
				mock.ExpectExec(tt.pattern).WithArgs(tt.args...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				require.NoError(t, tt.call(postgres.NewUserRepository(mock)))
			})

			t.Run("no rows", func(t *testing.T) {
				mock := newMock(t)
				mock.ExpectExec(tt.pattern).WithArgs(tt.args...).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				err := tt.call(postgres.NewUserRepository(mock))
				assert.ErrorIs(t, err, auth.ErrNotFound)
			})

			t.Run("database error", func(t *testing.T) {
				mock := newMock(t)
				mock.ExpectExec(tt.pattern).WithArgs(tt.args...).
					WillReturnError(errors.New("connection refused"))
				err := tt.call(postgres.NewUserRepository(mock))
				errutil.AssertErrorCode(t, err, tt.wantCode)
			})
		})
	}
}

func TestOrganizationRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("create assigns id", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO organizations`).
			WithArgs("Acme", now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

		org := &auth.Organization{Name: "Acme", CreatedAt: now}
		require.NoError(t, postgres.NewOrganizationRepository(mock).Create(ctx, org))
		assert.Equal(t, int64(7), org.ID)
	})

	t.Run("first returns oldest", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT id, name, created_at FROM organizations ORDER BY id LIMIT 1`).
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).
				AddRow(int64(1), "Default Organization", now))

		org, err := postgres.NewOrganizationRepository(mock).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), org.ID)
		assert.Equal(t, "Default Organization", org.Name)
	})

	t.Run("first with no organizations", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT id, name, created_at FROM organizations`).
			WillReturnError(pgx.ErrNoRows)

		_, err := postgres.NewOrganizationRepository(mock).First(ctx)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
