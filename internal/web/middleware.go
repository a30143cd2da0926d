// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/formdeck/formdeck/internal/auth"
)

type identityCtxKey struct{}

// TokenVerifier checks access tokens. *auth.TokenIssuer implements it.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity attached by Authenticate.
func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(auth.Identity)
	return id, ok
}

// IdentityFrom returns the identity attached to c's request by Authenticate.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	return IdentityFromContext(c.Request.Context())
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate requires a valid access token. A missing or malformed header
// is 401; a token that fails verification is 403.
func Authenticate(verifier TokenVerifier, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			respondError(c, logger, oops.Code(auth.CodeTokenMissing).Errorf("access token is required"))
			return
		}
		claims, err := verifier.VerifyAccessToken(token)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.Identity()))
		c.Next()
	}
}

// AuthorizeRoles allows the request through only if Authenticate attached
// an identity whose role is in roles.
func AuthorizeRoles(logger *slog.Logger, roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			respondError(c, logger, oops.Code(auth.CodeForbidden).Errorf("authentication required"))
			return
		}
		if !slices.Contains(roles, id.Role) {
			respondError(c, logger, oops.Code(auth.CodeForbidden).
				With("role", id.Role.String()).
				Errorf("insufficient role"))
			return
		}
		c.Next()
	}
}

// CORS allows credentialed requests from a single origin.
func CORS(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		if origin != "" && c.GetHeader("Origin") == origin {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HTTPObserver records finished requests. *observability.Metrics implements it.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// Metrics records request count and latency labelled by route template.
func Metrics(observer HTTPObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		observer.ObserveHTTP(c.Request.Method, routeOf(c), c.Writer.Status(), time.Since(start))
	}
}

// Tracing starts a server span per request, continuing any trace carried in
// the incoming headers, and installs it on the request context.
func Tracing(tracer trace.Tracer, propagator propagation.TextMapPropagator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+routeOf(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", routeOf(c)),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// RequestLogger logs one line per request. Bodies and headers are not logged.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id, ok := IdentityFromContext(c.Request.Context()); ok {
			attrs = append(attrs, "user_id", id.UserID)
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// Recovery turns panics into logged 500 responses.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		respondError(c, logger, oops.Code("HTTP_PANIC").
			With("route", routeOf(c)).
			Errorf("panic: %v", recovered))
	})
}
