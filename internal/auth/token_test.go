// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/pkg/errutil"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
)

var testIdentity = auth.Identity{UserID: 7, OrganizationID: 3, Role: auth.RoleEditor}

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(testAccessSecret, testRefreshSecret)
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		access  string
		refresh string
	}{
		{"empty access secret", "", "refresh"},
		{"empty refresh secret", "access", ""},
		{"identical secrets", "same", "same"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NewTokenIssuer(tt.access, tt.refresh)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "TOKEN_CONFIG_INVALID")
		})
	}
}

func TestTokenIssuer_AccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t).WithClock(func() time.Time { return now })

	token, err := issuer.IssueAccessToken(testIdentity)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, claims.Identity())
	assert.Empty(t, claims.TokenID)
	assert.True(t, now.Add(auth.AccessTokenExpiry).Equal(claims.ExpiresAt.Time))
}

func TestTokenIssuer_AccessTokenExpires(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t).WithClock(func() time.Time { return issuedAt })

	token, err := issuer.IssueAccessToken(testIdentity)
	require.NoError(t, err)

	t.Run("valid just before expiry", func(t *testing.T) {
		before := issuer.WithClock(func() time.Time { return issuedAt.Add(auth.AccessTokenExpiry - time.Second) })
		_, err := before.VerifyAccessToken(token)
		assert.NoError(t, err)
	})

	t.Run("rejected after expiry", func(t *testing.T) {
		after := issuer.WithClock(func() time.Time { return issuedAt.Add(auth.AccessTokenExpiry + time.Second) })
		_, err := after.VerifyAccessToken(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
	})
}

func TestTokenIssuer_RefreshToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newIssuer(t).WithClock(func() time.Time { return now })

	issued, err := issuer.IssueRefreshToken(testIdentity)
	require.NoError(t, err)
	assert.True(t, now.Add(auth.RefreshTokenExpiry).Equal(issued.ExpiresAt))

	claims, err := issuer.VerifyRefreshToken(issued.Token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity, claims.Identity())
	assert.Equal(t, issued.TokenID.String(), claims.TokenID)

	t.Run("token ids are unique for identical claims", func(t *testing.T) {
		second, err := issuer.IssueRefreshToken(testIdentity)
		require.NoError(t, err)
		assert.NotEqual(t, issued.TokenID, second.TokenID)
		assert.NotEqual(t, issued.Token, second.Token)
	})

	t.Run("expires after thirty days", func(t *testing.T) {
		later := issuer.WithClock(func() time.Time { return now.Add(auth.RefreshTokenExpiry + time.Second) })
		_, err := later.VerifyRefreshToken(issued.Token)
		errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
	})
}

func TestTokenIssuer_SecretsAreNotInterchangeable(t *testing.T) {
	issuer := newIssuer(t)

	access, err := issuer.IssueAccessToken(testIdentity)
	require.NoError(t, err)
	refresh, err := issuer.IssueRefreshToken(testIdentity)
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(access)
	errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)

	_, err = issuer.VerifyAccessToken(refresh.Token)
	errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
}

func TestTokenIssuer_RejectsBadTokens(t *testing.T) {
	issuer := newIssuer(t)

	valid, err := issuer.IssueAccessToken(testIdentity)
	require.NoError(t, err)

	other, err := auth.NewTokenIssuer("another-access-secret", "another-refresh-secret")
	require.NoError(t, err)
	foreign, err := other.IssueAccessToken(testIdentity)
	require.NoError(t, err)

	admin, err := issuer.IssueAccessToken(auth.Identity{UserID: 7, OrganizationID: 3, Role: auth.RoleAdmin})
	require.NoError(t, err)
	// Payload from the admin token spliced onto the editor token's signature.
	validParts := strings.Split(valid, ".")
	adminParts := strings.Split(admin, ".")
	tampered := strings.Join([]string{validParts[0], adminParts[1], validParts[2]}, ".")

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
		UserID:         7,
		OrganizationID: 3,
		Role:           auth.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:         7,
		OrganizationID: 3,
		Role:           auth.RoleAdmin,
	}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	unknownRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:         7,
		OrganizationID: 3,
		Role:           auth.Role("Superuser"),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	zeroUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		OrganizationID: 3,
		Role:           auth.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt"},
		{"signed with another secret", foreign},
		{"tampered payload", tampered},
		{"alg none", noneToken},
		{"missing expiry", noExpiry},
		{"unregistered role", unknownRole},
		{"missing user id", zeroUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := issuer.VerifyAccessToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
		})
	}
}

func TestTokenIssuer_RefreshRequiresTokenID(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:         7,
		OrganizationID: 3,
		Role:           auth.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testRefreshSecret))
	require.NoError(t, err)

	_, err = newIssuer(t).VerifyRefreshToken(token)
	errutil.AssertErrorCode(t, err, auth.CodeTokenInvalid)
}
