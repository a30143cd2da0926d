// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package authtest provides in-memory implementations of the auth
// repositories and notifier for tests.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/formdeck/formdeck/internal/auth"
)

// Store is an in-memory credential store. The zero value is not usable;
// create one with NewStore.
type Store struct {
	mu            sync.Mutex
	nextUserID    int64
	nextOrgID     int64
	users         map[int64]*auth.User
	orgs          map[int64]*auth.Organization
	refreshTokens map[ulid.ULID]*auth.RefreshToken
	verifications map[ulid.ULID]*auth.EmailVerification
	resets        map[ulid.ULID]*auth.PasswordReset
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:         make(map[int64]*auth.User),
		orgs:          make(map[int64]*auth.Organization),
		refreshTokens: make(map[ulid.ULID]*auth.RefreshToken),
		verifications: make(map[ulid.ULID]*auth.EmailVerification),
		resets:        make(map[ulid.ULID]*auth.PasswordReset),
	}
}

// Dependencies wires the store's repositories together with the given
// hasher, token issuer and notifier.
func (s *Store) Dependencies(hasher auth.PasswordHasher, tokens *auth.TokenIssuer, notifier auth.Notifier) auth.Dependencies {
	return auth.Dependencies{
		Users:         s.Users(),
		Organizations: s.Organizations(),
		RefreshTokens: s.RefreshTokens(),
		Verifications: s.Verifications(),
		Resets:        s.Resets(),
		Hasher:        hasher,
		Tokens:        tokens,
		Notifier:      notifier,
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Organizations returns the organization repository view of the store.
func (s *Store) Organizations() *OrganizationRepository { return &OrganizationRepository{s: s} }

// RefreshTokens returns the refresh token repository view of the store.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

// Verifications returns the email verification repository view of the store.
func (s *Store) Verifications() *VerificationRepository { return &VerificationRepository{s: s} }

// Resets returns the password reset repository view of the store.
func (s *Store) Resets() *ResetRepository { return &ResetRepository{s: s} }

// User returns a copy of the stored user with the given email, or nil.
func (s *Store) User(email string) *auth.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp
		}
	}
	return nil
}

// OrganizationCount returns the number of stored organizations.
func (s *Store) OrganizationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orgs)
}

// RefreshTokenCount returns the number of stored refresh tokens.
func (s *Store) RefreshTokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refreshTokens)
}

// UserRepository implements auth.UserRepository.
type UserRepository struct{ s *Store }

// Create stores a new user and assigns its ID.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return auth.ErrDuplicate
		}
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

// RecordLoginFailure increments the counter and locks at threshold.
func (r *UserRepository) RecordLoginFailure(_ context.Context, id int64, threshold int, lockUntil time.Time) (auth.LoginFailure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.LoginFailure{}, auth.ErrNotFound
	}
	u.FailedAttempts++
	if u.FailedAttempts >= threshold {
		t := lockUntil
		u.LockedUntil = &t
	}
	return auth.LoginFailure{FailedAttempts: u.FailedAttempts, LockedUntil: u.LockedUntil}, nil
}

// RecordLoginSuccess resets the counter and lockout.
func (r *UserRepository) RecordLoginSuccess(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.FailedAttempts = 0
	u.LockedUntil = nil
	return nil
}

// UpdatePassword replaces the hash and clears lockout state.
func (r *UserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.FailedAttempts = 0
	u.LockedUntil = nil
	return nil
}

// MarkVerified sets the verification flag.
func (r *UserRepository) MarkVerified(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

// OrganizationRepository implements auth.OrganizationRepository.
type OrganizationRepository struct{ s *Store }

// Create stores a new organization and assigns its ID.
func (r *OrganizationRepository) Create(_ context.Context, org *auth.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextOrgID++
	org.ID = r.s.nextOrgID
	cp := *org
	r.s.orgs[org.ID] = &cp
	return nil
}

// First returns the organization with the lowest ID.
func (r *OrganizationRepository) First(_ context.Context) (*auth.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(r.s.orgs) == 0 {
		return nil, auth.ErrNotFound
	}
	ids := make([]int64, 0, len(r.s.orgs))
	for id := range r.s.orgs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	cp := *r.s.orgs[ids[0]]
	return &cp, nil
}

// RefreshTokenRepository implements auth.RefreshTokenRepository.
type RefreshTokenRepository struct{ s *Store }

// Create stores a refresh token.
func (r *RefreshTokenRepository) Create(_ context.Context, token *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.refreshTokens {
		if t.TokenHash == token.TokenHash {
			return auth.ErrDuplicate
		}
	}
	cp := *token
	r.s.refreshTokens[token.ID] = &cp
	return nil
}

// DeleteByTokenHash removes the token with the given hash.
func (r *RefreshTokenRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.refreshTokens {
		if t.TokenHash == tokenHash {
			delete(r.s.refreshTokens, id)
			return nil
		}
	}
	return auth.ErrNotFound
}

// DeleteByUser removes all of a user's refresh tokens.
func (r *RefreshTokenRepository) DeleteByUser(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.refreshTokens {
		if t.UserID == userID {
			delete(r.s.refreshTokens, id)
		}
	}
	return nil
}

// DeleteExpired removes tokens expired before now.
func (r *RefreshTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.refreshTokens {
		if t.ExpiresAt.Before(now) {
			delete(r.s.refreshTokens, id)
			n++
		}
	}
	return n, nil
}

// VerificationRepository implements auth.EmailVerificationRepository.
type VerificationRepository struct{ s *Store }

// Create stores a verification.
func (r *VerificationRepository) Create(_ context.Context, v *auth.EmailVerification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *v
	r.s.verifications[v.ID] = &cp
	return nil
}

// GetByTokenHash retrieves a verification by token hash.
func (r *VerificationRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.EmailVerification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.verifications {
		if v.TokenHash == tokenHash {
			cp := *v
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Delete removes a verification.
func (r *VerificationRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.verifications[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.verifications, id)
	return nil
}

// DeleteExpired removes verifications expired before now.
func (r *VerificationRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.verifications {
		if v.ExpiresAt.Before(now) {
			delete(r.s.verifications, id)
			n++
		}
	}
	return n, nil
}

// ResetRepository implements auth.PasswordResetRepository.
type ResetRepository struct{ s *Store }

// Create stores a reset request.
func (r *ResetRepository) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *reset
	r.s.resets[reset.ID] = &cp
	return nil
}

// GetByTokenHash retrieves a reset request by token hash.
func (r *ResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.resets {
		if v.TokenHash == tokenHash {
			cp := *v
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Delete removes a reset request.
func (r *ResetRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.resets[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.resets, id)
	return nil
}

// DeleteByUser removes all of a user's reset requests.
func (r *ResetRepository) DeleteByUser(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, v := range r.s.resets {
		if v.UserID == userID {
			delete(r.s.resets, id)
		}
	}
	return nil
}

// DeleteExpired removes reset requests expired before now.
func (r *ResetRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, v := range r.s.resets {
		if v.ExpiresAt.Before(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

// Compile-time interface checks.
var (
	_ auth.UserRepository              = (*UserRepository)(nil)
	_ auth.OrganizationRepository      = (*OrganizationRepository)(nil)
	_ auth.RefreshTokenRepository      = (*RefreshTokenRepository)(nil)
	_ auth.EmailVerificationRepository = (*VerificationRepository)(nil)
	_ auth.PasswordResetRepository     = (*ResetRepository)(nil)
)
