// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package web

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/formdeck/formdeck/internal/auth"
)

const tracerName = "github.com/formdeck/formdeck/internal/web"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Service  AuthService
	Verifier TokenVerifier
	Logger   *slog.Logger
	// Observer receives per-request metrics. Nil disables them.
	Observer HTTPObserver
	// Tracer defaults to the global tracer provider.
	Tracer        trace.Tracer
	CORSOrigin    string
	SecureCookies bool
}

// NewRouter builds the gin engine serving /api/auth.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	r := gin.New()
	r.Use(Recovery(logger))
	r.Use(Tracing(tracer, otel.GetTextMapPropagator()))
	if cfg.Observer != nil {
		r.Use(Metrics(cfg.Observer))
	}
	r.Use(RequestLogger(logger))
	r.Use(CORS(cfg.CORSOrigin))

	h := &handlers{svc: cfg.Service, logger: logger, secureCookies: cfg.SecureCookies}
	authenticated := Authenticate(cfg.Verifier, logger)

	api := r.Group("/api/auth")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.POST("/refresh", h.refresh)
		api.POST("/verify-email", h.verifyEmail)
		api.POST("/forgot-password", h.forgotPassword)
		api.POST("/reset-password", h.resetPassword)
		api.POST("/logout", authenticated, h.logout)
		api.GET("/me", authenticated,
			AuthorizeRoles(logger, auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer), h.me)
	}
	return r
}
