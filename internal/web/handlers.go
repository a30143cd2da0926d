// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/formdeck/formdeck/internal/auth"
)

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refreshToken"

// AuthService is the subset of *auth.Service the handlers call.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) error
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Logout(ctx context.Context, refreshToken string)
}

type registerRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organizationName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type handlers struct {
	svc           AuthService
	logger        *slog.Logger
	secureCookies bool
}

// bind decodes a JSON body into dst. An empty body leaves dst zero.
func (h *handlers) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, h.logger, badRequest("invalid request body"))
		return false
	}
	return true
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}
	err := h.svc.Register(c.Request.Context(), auth.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		OrganizationName: req.OrganizationName,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Check your email to verify your account.",
	})
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.setRefreshCookie(c, res.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"accessToken": res.AccessToken})
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(RefreshCookieName) //nolint:errcheck // absent cookie means no token
	}
	access, err := h.svc.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": access})
}

func (h *handlers) verifyEmail(c *gin.Context) {
	var req tokenRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified."})
}

func (h *handlers) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "If that email is registered, a password reset link has been sent.",
	})
}

func (h *handlers) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset."})
}

func (h *handlers) logout(c *gin.Context) {
	token, _ := c.Cookie(RefreshCookieName) //nolint:errcheck // absent cookie means nothing to revoke
	h.svc.Logout(c.Request.Context(), token)
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

func (h *handlers) me(c *gin.Context) {
	id, _ := IdentityFrom(c)
	c.JSON(http.StatusOK, gin.H{"user": id})
}

func (h *handlers) setRefreshCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.RefreshTokenExpiry / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *handlers) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
