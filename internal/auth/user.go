// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Password length constraints. bcrypt ignores input past 72 bytes, so longer
// passwords are rejected instead of being silently truncated.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// MaxEmailLength is the longest email address accepted.
const MaxEmailLength = 254

// emailRegex is a pragmatic shape check: one @, no spaces, a dot in the domain.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Organization is the tenant that owns forms and dashboards.
type Organization struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// User represents an account that can sign in.
type User struct {
	ID             int64
	Email          string
	PasswordHash   string
	OrganizationID int64
	Role           Role
	IsVerified     bool
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates an unverified User with the default role.
// The ID is assigned by the repository on Create.
func NewUser(email, passwordHash string, organizationID int64) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if organizationID <= 0 {
		return nil, oops.Code("USER_INVALID_ORGANIZATION").
			With("organization_id", organizationID).
			Errorf("organization ID must be positive")
	}
	now := time.Now()
	return &User{
		Email:          email,
		PasswordHash:   passwordHash,
		OrganizationID: organizationID,
		Role:           DefaultRole,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// IsLockedAt reports whether the user is locked out at time t.
func (u *User) IsLockedAt(t time.Time) bool {
	return IsLockedOutAt(u.LockedUntil, t)
}

// Identity returns the claims identity for the user.
func (u *User) Identity() Identity {
	return Identity{
		UserID:         u.ID,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
	}
}

// Identity is the authenticated principal attached to a request.
type Identity struct {
	UserID         int64 `json:"id"`
	OrganizationID int64 `json:"organization_id"`
	Role           Role  `json:"role"`
}

// ValidateEmail validates the shape of an email address. It does not
// normalize case; emails are matched exactly as stored.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidInput).Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeInvalidInput).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if strings.TrimSpace(email) != email || !emailRegex.MatchString(email) {
		return oops.Code(CodeInvalidInput).Errorf("email is not valid")
	}
	return nil
}

// ValidatePassword checks password length constraints.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeInvalidInput).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code(CodeInvalidInput).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// LoginFailure is the lockout state after a failed attempt was recorded.
type LoginFailure struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and sets its ID.
	// Returns ErrDuplicate if the email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByEmail retrieves a user by exact email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// RecordLoginFailure atomically increments the failed-attempt counter and,
	// when the incremented count reaches threshold, sets locked_until to lockUntil.
	RecordLoginFailure(ctx context.Context, id int64, threshold int, lockUntil time.Time) (LoginFailure, error)

	// RecordLoginSuccess resets the failed-attempt counter and clears any lockout.
	RecordLoginSuccess(ctx context.Context, id int64) error

	// UpdatePassword replaces the password hash and clears lockout state.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// MarkVerified sets the verification flag.
	MarkVerified(ctx context.Context, id int64) error
}

// OrganizationRepository manages organization persistence.
type OrganizationRepository interface {
	// Create stores a new organization and sets its ID.
	Create(ctx context.Context, org *Organization) error

	// First returns the organization with the lowest ID.
	// Returns ErrNotFound when no organization exists.
	First(ctx context.Context) (*Organization, error)
}
