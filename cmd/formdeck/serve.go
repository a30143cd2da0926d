// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/internal/auth/postgres"
	"github.com/formdeck/formdeck/internal/config"
	"github.com/formdeck/formdeck/internal/notify"
	"github.com/formdeck/formdeck/internal/observability"
	"github.com/formdeck/formdeck/internal/store"
	"github.com/formdeck/formdeck/internal/web"
)

const readinessTimeout = 2 * time.Second

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the public auth API and, unless metrics.addr is empty, the
metrics and health probe listener. SIGINT or SIGTERM shuts both down
gracefully.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}
}

func runServe(cmd *cobra.Command, deps *Deps) error {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := setupLogging(cfg, deps)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := migrateUp(deps, cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	db, err := deps.Connect(ctx, store.PoolConfig{
		URL:            cfg.Database.URL,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		obsServer *observability.Server
		obsErrCh  <-chan error
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr,
			observability.PingChecker(db, readinessTimeout), logger)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return err
		}
	}

	issuer, err := auth.NewTokenIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)
	if err != nil {
		stopObservability(logger, obsServer, cfg.HTTP.ShutdownTimeout)
		return err
	}
	svc, err := buildService(cfg, db, issuer, logger, obsServer)
	if err != nil {
		stopObservability(logger, obsServer, cfg.HTTP.ShutdownTimeout)
		return err
	}

	routerCfg := web.RouterConfig{
		Service:       svc,
		Verifier:      issuer,
		Logger:        logger,
		CORSOrigin:    cfg.HTTP.CORSOrigin,
		SecureCookies: cfg.IsProduction(),
	}
	if obsServer != nil {
		routerCfg.Observer = obsServer.Metrics()
	}
	gin.SetMode(gin.ReleaseMode)
	httpServer := web.NewServer(cfg.HTTP.Addr, web.NewRouter(routerCfg), logger)
	httpErrCh, err := httpServer.Start()
	if err != nil {
		stopObservability(logger, obsServer, cfg.HTTP.ShutdownTimeout)
		return err
	}

	logger.Info("formdeck ready", "http_addr", httpServer.Addr(), "env", cfg.Env)
	if deps.OnServing != nil {
		metricsAddr := ""
		if obsServer != nil {
			metricsAddr = obsServer.Addr()
		}
		deps.OnServing(httpServer.Addr(), metricsAddr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-httpErrCh:
		serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	case err := <-obsErrCh:
		serveErr = oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
	}

	stopServer(logger, "http", httpServer, cfg.HTTP.ShutdownTimeout)
	stopObservability(logger, obsServer, cfg.HTTP.ShutdownTimeout)
	logger.Info("shutdown complete")
	return serveErr
}

// buildService wires the repositories, hasher and notifier around issuer.
func buildService(
	cfg *config.Config,
	db postgres.DB,
	issuer *auth.TokenIssuer,
	logger *slog.Logger,
	obs *observability.Server,
) (*auth.Service, error) {
	var notifier auth.Notifier
	var err error
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp.host not set, verification and reset emails will not be delivered")
		notifier = notify.NewLogSender(logger)
	} else {
		notifier, err = notify.NewSMTPSender(notify.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			From:        cfg.SMTP.From,
			FrontendURL: cfg.HTTP.FrontendURL,
		})
		if err != nil {
			return nil, err
		}
	}

	opts := []auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithDefaultOrganization(cfg.Auth.DefaultOrganization),
	}
	if obs != nil {
		opts = append(opts, auth.WithEventRecorder(obs.Metrics()))
	}

	//nolint:wrapcheck // NewService returns coded oops errors
	return auth.NewService(auth.Dependencies{
		Users:         postgres.NewUserRepository(db),
		Organizations: postgres.NewOrganizationRepository(db),
		RefreshTokens: postgres.NewRefreshTokenRepository(db),
		Verifications: postgres.NewEmailVerificationRepository(db),
		Resets:        postgres.NewPasswordResetRepository(db),
		Hasher:        auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:        issuer,
		Notifier:      notifier,
	}, opts...)
}

type stoppable interface {
	Stop(ctx context.Context) error
}

func stopObservability(logger *slog.Logger, s *observability.Server, timeout time.Duration) {
	if s != nil {
		stopServer(logger, "observability", s, timeout)
	}
}

func stopServer(logger *slog.Logger, name string, s stoppable, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}
