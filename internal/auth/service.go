// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// DefaultOrganizationName names the organization created when a user
// registers without an organization name and none exists yet.
const DefaultOrganizationName = "Default Organization"

// MaxOrganizationNameLength bounds organization names supplied at registration.
const MaxOrganizationNameLength = 200

// fallbackDummyHash is used only if hashing the dummy password fails.
// It is a well-formed bcrypt string that matches no password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const fallbackDummyHash = "$2a$12$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Dependencies are the collaborators Service needs.
type Dependencies struct {
	Users         UserRepository
	Organizations OrganizationRepository
	RefreshTokens RefreshTokenRepository
	Verifications EmailVerificationRepository
	Resets        PasswordResetRepository
	Hasher        PasswordHasher
	Tokens        *TokenIssuer
	Notifier      Notifier
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for lockout and expiry decisions.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEventRecorder sets the metrics sink.
func WithEventRecorder(r EventRecorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.events = r
		}
	}
}

// WithDefaultOrganization overrides DefaultOrganizationName.
func WithDefaultOrganization(name string) ServiceOption {
	return func(s *Service) {
		if name = strings.TrimSpace(name); name != "" {
			s.defaultOrg = name
		}
	}
}

// Service provides authentication operations.
type Service struct {
	users         UserRepository
	orgs          OrganizationRepository
	refreshTokens RefreshTokenRepository
	verifications EmailVerificationRepository
	resets        PasswordResetRepository
	hasher        PasswordHasher
	tokens        *TokenIssuer
	notifier      Notifier

	logger     *slog.Logger
	now        func() time.Time
	events     EventRecorder
	defaultOrg string

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a new Service. All dependencies are required.
func NewService(deps Dependencies, opts ...ServiceOption) (*Service, error) {
	switch {
	case deps.Users == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("users repository is required")
	case deps.Organizations == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("organizations repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("refresh tokens repository is required")
	case deps.Verifications == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("email verifications repository is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password resets repository is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("token issuer is required")
	case deps.Notifier == nil:
		return nil, oops.Code("AUTH_CONFIG_INVALID").Errorf("notifier is required")
	}

	s := &Service{
		users:         deps.Users,
		orgs:          deps.Organizations,
		refreshTokens: deps.RefreshTokens,
		verifications: deps.Verifications,
		resets:        deps.Resets,
		hasher:        deps.Hasher,
		tokens:        deps.Tokens,
		notifier:      deps.Notifier,
		logger:        slog.Default(),
		now:           time.Now,
		events:        noopRecorder{},
		defaultOrg:    DefaultOrganizationName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email            string
	Password         string
	OrganizationName string
}

// Register creates an unverified admin user and sends an email verification token.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := ValidateEmail(in.Email); err != nil {
		s.events.RecordAuthEvent("register", "invalid_input")
		return err
	}

	// A registered email is a conflict whatever else the request carries.
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		s.events.RecordAuthEvent("register", "conflict")
		return emailTaken()
	} else if !errors.Is(err, ErrNotFound) {
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err))
	}

	if err := ValidatePassword(in.Password); err != nil {
		s.events.RecordAuthEvent("register", "invalid_input")
		return err
	}
	orgName := strings.TrimSpace(in.OrganizationName)
	if len(orgName) > MaxOrganizationNameLength {
		s.events.RecordAuthEvent("register", "invalid_input")
		return oops.Code(CodeInvalidInput).
			With("max", MaxOrganizationNameLength).
			Errorf("organization name must be at most %d characters", MaxOrganizationNameLength)
	}

	org, err := s.resolveOrganization(ctx, orgName)
	if err != nil {
		return s.fail("register", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	user, err := NewUser(in.Email, hash, org.ID)
	if err != nil {
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new user").
			Wrap(err))
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			s.events.RecordAuthEvent("register", "conflict")
			return emailTaken()
		}
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err))
	}

	token, tokenHash, err := GenerateOneTimeToken()
	if err != nil {
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "generate verification token").
			Wrap(err))
	}
	verification, err := NewEmailVerification(user.ID, tokenHash, s.now().Add(EmailVerificationExpiry))
	if err != nil {
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "new email verification").
			Wrap(err))
	}
	if err := s.verifications.Create(ctx, verification); err != nil {
		return s.fail("register", oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create email verification").
			With("user_id", user.ID).
			Wrap(err))
	}
	if err := s.notifier.Send(ctx, NotifyVerifyEmail, user.Email, token); err != nil {
		return s.fail("register", oops.Code("AUTH_NOTIFY_FAILED").
			With("kind", string(NotifyVerifyEmail)).
			With("user_id", user.ID).
			Wrap(err))
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"organization_id", user.OrganizationID)
	s.events.RecordAuthEvent("register", "success")
	return nil
}

// resolveOrganization creates the named organization, or falls back to the
// first existing one, creating the default organization if there is none.
func (s *Service) resolveOrganization(ctx context.Context, name string) (*Organization, error) {
	if name == "" {
		org, err := s.orgs.First(ctx)
		if err == nil {
			return org, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "get first organization").
				Wrap(err)
		}
		name = s.defaultOrg
	}

	org := &Organization{Name: name, CreatedAt: s.now()}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create organization").
			With("name", name).
			Wrap(err)
	}
	return org, nil
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Identity         Identity
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Login authenticates a user by email and password and issues tokens.
//
// An active lockout is checked before the password, so even a correct
// password fails until the lockout expires.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, s.fail("login", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(err))
		}
		// Keep response time close to the wrong-password path.
		_, _ = s.hasher.Verify(password, s.dummy()) //nolint:errcheck // result is irrelevant
		s.events.RecordAuthEvent("login", "invalid_credentials")
		return nil, invalidCredentials()
	}

	now := s.now()
	if user.IsLockedAt(now) {
		s.events.RecordAuthEvent("login", "locked")
		return nil, oops.Code(CodeAccountLocked).
			With("locked_until", *user.LockedUntil).
			With("remaining", user.LockedUntil.Sub(now).String()).
			Errorf("account is temporarily locked")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, s.fail("login", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(err))
	}

	if !valid {
		s.recordFailure(ctx, user.ID, now)
		s.events.RecordAuthEvent("login", "invalid_credentials")
		return nil, invalidCredentials()
	}

	// Login succeeds even if the counter reset fails.
	if err := s.users.RecordLoginSuccess(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to reset login failure counter",
			"user_id", user.ID, "error", err)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password)
	}

	id := user.Identity()
	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return nil, s.fail("login", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue access token").
			Wrap(err))
	}
	issued, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		return nil, s.fail("login", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue refresh token").
			Wrap(err))
	}
	row, err := NewRefreshToken(user.ID, issued)
	if err != nil {
		return nil, s.fail("login", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "new refresh token").
			Wrap(err))
	}
	if err := s.refreshTokens.Create(ctx, row); err != nil {
		return nil, s.fail("login", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "persist refresh token").
			With("user_id", user.ID).
			Wrap(err))
	}

	s.events.RecordAuthEvent("login", "success")
	return &LoginResult{
		Identity:         id,
		AccessToken:      access,
		RefreshToken:     issued.Token,
		RefreshExpiresAt: issued.ExpiresAt,
	}, nil
}

// recordFailure increments the failure counter. Errors are logged only; the
// caller reports invalid credentials either way.
func (s *Service) recordFailure(ctx context.Context, userID int64, now time.Time) {
	failure, err := s.users.RecordLoginFailure(ctx, userID, LockoutThreshold, LockoutExpiry(now))
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure",
			"user_id", userID, "error", err)
		return
	}
	if ReachesLockout(failure.FailedAttempts) && IsLockedOutAt(failure.LockedUntil, now) {
		s.logger.WarnContext(ctx, "account locked after repeated login failures",
			"user_id", userID,
			"failed_attempts", failure.FailedAttempts,
			"locked_until", *failure.LockedUntil)
		s.events.RecordLockout()
	}
}

func (s *Service) upgradeHash(ctx context.Context, userID int64, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rehash password", "user_id", userID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		s.logger.WarnContext(ctx, "failed to store upgraded password hash", "user_id", userID, "error", err)
	}
}

// Refresh verifies a refresh token and mints a new access token from its
// claims. The stored refresh token row is not consulted.
func (s *Service) Refresh(_ context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		s.events.RecordAuthEvent("refresh", "missing_token")
		return "", oops.Code(CodeTokenMissing).Errorf("refresh token is required")
	}
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		s.events.RecordAuthEvent("refresh", "invalid_token")
		return "", err
	}
	access, err := s.tokens.IssueAccessToken(claims.Identity())
	if err != nil {
		return "", s.fail("refresh", oops.Code("AUTH_REFRESH_FAILED").
			With("operation", "issue access token").
			Wrap(err))
	}
	s.events.RecordAuthEvent("refresh", "success")
	return access, nil
}

// VerifyEmail consumes an email verification token and marks the user verified.
// The token row is deleted before the user is updated so concurrent requests
// with the same token cannot both succeed.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		s.events.RecordAuthEvent("verify_email", "invalid_token")
		return invalidOneTimeToken()
	}

	v, err := s.verifications.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("verify_email", "invalid_token")
			return invalidOneTimeToken()
		}
		return s.fail("verify_email", oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "get verification by token hash").
			Wrap(err))
	}

	if err := s.verifications.Delete(ctx, v.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("verify_email", "invalid_token")
			return invalidOneTimeToken()
		}
		return s.fail("verify_email", oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "delete verification").
			Wrap(err))
	}

	if v.IsExpiredAt(s.now()) {
		s.events.RecordAuthEvent("verify_email", "expired_token")
		return invalidOneTimeToken()
	}

	if err := s.users.MarkVerified(ctx, v.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("verify_email", "invalid_token")
			return invalidOneTimeToken()
		}
		return s.fail("verify_email", oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "mark user verified").
			With("user_id", v.UserID).
			Wrap(err))
	}

	s.events.RecordAuthEvent("verify_email", "success")
	return nil
}

// ForgotPassword sends a password reset token if the email is registered.
// The result is the same whether or not the email exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		s.events.RecordAuthEvent("forgot_password", "unknown_email")
		return nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("forgot_password", "unknown_email")
			return nil
		}
		return s.fail("forgot_password", oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err))
	}

	token, tokenHash, err := GenerateOneTimeToken()
	if err != nil {
		return s.fail("forgot_password", oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err))
	}
	reset, err := NewPasswordReset(user.ID, tokenHash, s.now().Add(PasswordResetExpiry))
	if err != nil {
		return s.fail("forgot_password", oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "new password reset").
			Wrap(err))
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return s.fail("forgot_password", oops.Code("AUTH_RESET_REQUEST_FAILED").
			With("operation", "create password reset").
			With("user_id", user.ID).
			Wrap(err))
	}
	if err := s.notifier.Send(ctx, NotifyPasswordReset, user.Email, token); err != nil {
		return s.fail("forgot_password", oops.Code("AUTH_NOTIFY_FAILED").
			With("kind", string(NotifyPasswordReset)).
			With("user_id", user.ID).
			Wrap(err))
	}

	s.events.RecordAuthEvent("forgot_password", "success")
	return nil
}

// ResetPassword consumes a password reset token and replaces the user's password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		s.events.RecordAuthEvent("reset_password", "invalid_input")
		return err
	}
	if token == "" {
		s.events.RecordAuthEvent("reset_password", "invalid_token")
		return invalidOneTimeToken()
	}

	reset, err := s.resets.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("reset_password", "invalid_token")
			return invalidOneTimeToken()
		}
		return s.fail("reset_password", oops.Code("AUTH_RESET_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err))
	}

	if err := s.resets.Delete(ctx, reset.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("reset_password", "invalid_token")
			return invalidOneTimeToken()
		}
		return s.fail("reset_password", oops.Code("AUTH_RESET_FAILED").
			With("operation", "delete reset").
			Wrap(err))
	}

	if reset.IsExpiredAt(s.now()) {
		s.events.RecordAuthEvent("reset_password", "expired_token")
		return invalidOneTimeToken()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.fail("reset_password", oops.Code("AUTH_RESET_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.events.RecordAuthEvent("reset_password", "invalid_token")
			return invalidOneTimeToken()
		}
		return s.fail("reset_password", oops.Code("AUTH_RESET_FAILED").
			With("operation", "update password").
			With("user_id", reset.UserID).
			Wrap(err))
	}

	// Cleanup only; the password is already updated.
	if err := s.resets.DeleteByUser(ctx, reset.UserID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete remaining password resets",
			"user_id", reset.UserID, "error", err)
	}
	if err := s.refreshTokens.DeleteByUser(ctx, reset.UserID); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke refresh tokens after password reset",
			"user_id", reset.UserID, "error", err)
	}

	s.events.RecordAuthEvent("reset_password", "success")
	return nil
}

// Logout deletes the stored refresh token row. It never fails: errors are
// logged and the caller clears the cookie regardless.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		s.events.RecordAuthEvent("logout", "success")
		return
	}
	err := s.refreshTokens.DeleteByTokenHash(ctx, HashToken(refreshToken))
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to delete refresh token on logout", "error", err)
		s.events.RecordAuthEvent("logout", "error")
		return
	}
	s.events.RecordAuthEvent("logout", "success")
}

// PruneResult counts rows removed by PruneExpired.
type PruneResult struct {
	RefreshTokens      int64
	EmailVerifications int64
	PasswordResets     int64
}

// PruneExpired deletes expired refresh tokens and one-time tokens.
func (s *Service) PruneExpired(ctx context.Context) (PruneResult, error) {
	now := s.now()
	var res PruneResult
	var err error

	if res.RefreshTokens, err = s.refreshTokens.DeleteExpired(ctx, now); err != nil {
		return res, oops.Code("AUTH_PRUNE_FAILED").With("table", "refresh_tokens").Wrap(err)
	}
	if res.EmailVerifications, err = s.verifications.DeleteExpired(ctx, now); err != nil {
		return res, oops.Code("AUTH_PRUNE_FAILED").With("table", "email_verifications").Wrap(err)
	}
	if res.PasswordResets, err = s.resets.DeleteExpired(ctx, now); err != nil {
		return res, oops.Code("AUTH_PRUNE_FAILED").With("table", "password_resets").Wrap(err)
	}
	return res, nil
}

// dummy returns a hash produced by the configured hasher so the unknown-email
// path costs the same as a real comparison.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("formdeck-dummy-password")
		if err != nil {
			hash = fallbackDummyHash
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// fail records an error outcome and returns err unchanged.
func (s *Service) fail(operation string, err error) error {
	s.events.RecordAuthEvent(operation, "error")
	return err
}

func emailTaken() error {
	return oops.Code(CodeEmailTaken).Errorf("email is already registered")
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func invalidOneTimeToken() error {
	return oops.Code(CodeInvalidOneTimeToken).Errorf("invalid or expired token")
}
