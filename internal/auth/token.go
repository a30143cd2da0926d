// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token lifetimes.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 30 * 24 * time.Hour
)

// Claims is the JWT payload shared by access and refresh tokens.
// TokenID is only set on refresh tokens.
type Claims struct {
	UserID         int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Role           Role   `json:"role"`
	TokenID        string `json:"token_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the principal carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		UserID:         c.UserID,
		OrganizationID: c.OrganizationID,
		Role:           c.Role,
	}
}

// validate checks the application claims after the signature and expiry have
// been verified.
func (c *Claims) validate() error {
	if c.UserID <= 0 {
		return oops.Errorf("claim id must be positive")
	}
	if c.OrganizationID <= 0 {
		return oops.Errorf("claim organization_id must be positive")
	}
	if !c.Role.Valid() {
		return oops.With("role", string(c.Role)).Errorf("claim role is not registered")
	}
	return nil
}

// IssuedRefreshToken is a signed refresh token and the metadata needed to persist it.
type IssuedRefreshToken struct {
	Token     string
	TokenID   ulid.ULID
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies access and refresh tokens with HS256.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. Both secrets are required and must differ.
func NewTokenIssuer(accessSecret, refreshSecret string) (*TokenIssuer, error) {
	if accessSecret == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access token secret is required")
	}
	if refreshSecret == "" {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("refresh token secret is required")
	}
	if accessSecret == refreshSecret {
		return nil, oops.Code("TOKEN_CONFIG_INVALID").Errorf("access and refresh token secrets must differ")
	}
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

// IssueAccessToken signs {id, organization_id, role} with a 15 minute expiry.
func (i *TokenIssuer) IssueAccessToken(id Identity) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:           id.UserID,
		OrganizationID:   id.OrganizationID,
		Role:             id.Role,
		RegisteredClaims: registered(now, AccessTokenExpiry),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("kind", "access").Wrap(err)
	}
	return token, nil
}

// IssueRefreshToken signs {id, organization_id, role, token_id} with a 30 day
// expiry. token_id is a fresh ULID so identical claims never yield identical tokens.
func (i *TokenIssuer) IssueRefreshToken(id Identity) (*IssuedRefreshToken, error) {
	now := i.now()
	tokenID := ulid.Make()
	claims := &Claims{
		UserID:           id.UserID,
		OrganizationID:   id.OrganizationID,
		Role:             id.Role,
		TokenID:          tokenID.String(),
		RegisteredClaims: registered(now, RefreshTokenExpiry),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return nil, oops.Code("TOKEN_SIGN_FAILED").With("kind", "refresh").Wrap(err)
	}
	return &IssuedRefreshToken{
		Token:     token,
		TokenID:   tokenID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// VerifyAccessToken verifies a token against the access secret.
func (i *TokenIssuer) VerifyAccessToken(token string) (*Claims, error) {
	return i.verify(token, i.accessSecret)
}

// VerifyRefreshToken verifies a token against the refresh secret.
func (i *TokenIssuer) VerifyRefreshToken(token string) (*Claims, error) {
	claims, err := i.verify(token, i.refreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenID == "" {
		return nil, invalidToken()
	}
	return claims, nil
}

// verify parses and validates a token. Every failure, whether the token is
// malformed, forged, expired or carries bad claims, yields the same error.
func (i *TokenIssuer) verify(token string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, invalidToken()
	}
	if err := claims.validate(); err != nil {
		return nil, invalidToken()
	}
	return claims, nil
}

func registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func invalidToken() error {
	return oops.Code(CodeTokenInvalid).Errorf("invalid or expired token")
}
