// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package config loads FormDeck settings.
//
// Sources are applied in order, each overriding the last: built-in defaults,
// an optional YAML file, environment variables, then command-line flags the
// user actually set.
package config

import (
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/internal/logging"
	"github.com/formdeck/formdeck/internal/store"
)

// EnvProduction turns on Secure cookies.
const EnvProduction = "production"

// Config is the full service configuration.
type Config struct {
	Env      string         `koanf:"env" env:"NODE_ENV"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	JWT      JWTConfig      `koanf:"jwt"`
	Auth     AuthConfig     `koanf:"auth"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" env:"HTTP_ADDR"`
	CORSOrigin      string        `koanf:"cors_origin" env:"CORS_ORIGIN"`
	FrontendURL     string        `koanf:"frontend_url" env:"FRONTEND_URL"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" env:"METRICS_ADDR"`
}

// DatabaseConfig configures PostgreSQL access.
type DatabaseConfig struct {
	URL            string        `koanf:"url" env:"DATABASE_URL"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" env:"DATABASE_CONNECT_TIMEOUT"`
	AutoMigrate    bool          `koanf:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

// JWTConfig holds the two signing secrets.
type JWTConfig struct {
	AccessSecret  string `koanf:"access_secret" env:"JWT_ACCESS_SECRET"`
	RefreshSecret string `koanf:"refresh_secret" env:"JWT_REFRESH_SECRET"`
}

// AuthConfig tunes the auth service.
type AuthConfig struct {
	BcryptCost          int    `koanf:"bcrypt_cost" env:"BCRYPT_COST"`
	DefaultOrganization string `koanf:"default_organization" env:"DEFAULT_ORGANIZATION"`
}

// SMTPConfig configures outgoing mail. An empty Host selects the log sender.
type SMTPConfig struct {
	Host     string `koanf:"host" env:"SMTP_HOST"`
	Port     int    `koanf:"port" env:"SMTP_PORT"`
	Username string `koanf:"username" env:"SMTP_USER"`
	Password string `koanf:"password" env:"SMTP_PASS"`
	From     string `koanf:"from" env:"SMTP_FROM"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Format string `koanf:"format" env:"LOG_FORMAT"`
	Level  string `koanf:"level" env:"LOG_LEVEL"`
}

// Default returns the built-in defaults. Secrets and the database URL have
// no default.
func Default() Config {
	return Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			CORSOrigin:      "http://localhost:3000",
			FrontendURL:     "http://localhost:3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{ConnectTimeout: store.DefaultConnectTimeout},
		Auth: AuthConfig{
			BcryptCost:          auth.DefaultBcryptCost,
			DefaultOrganization: auth.DefaultOrganizationName,
		},
		SMTP: SMTPConfig{Port: 587, From: "no-reply@formdeck.local"},
		Log:  LogConfig{Format: "json", Level: "info"},
	}
}

// IsProduction reports whether Env is "production".
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ValidateDatabase checks only what the migrate command needs.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database url is required (DATABASE_URL)")
	}
	if c.Database.ConnectTimeout <= 0 {
		return invalid("database.connect_timeout", "connect timeout must be positive")
	}
	return c.validateLog()
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	switch {
	case c.HTTP.Addr == "":
		return invalid("http.addr", "http address is required")
	case c.HTTP.ShutdownTimeout <= 0:
		return invalid("http.shutdown_timeout", "shutdown timeout must be positive")
	case c.HTTP.FrontendURL == "":
		return invalid("http.frontend_url", "frontend url is required")
	case c.JWT.AccessSecret == "":
		return invalid("jwt.access_secret", "access token secret is required (JWT_ACCESS_SECRET)")
	case c.JWT.RefreshSecret == "":
		return invalid("jwt.refresh_secret", "refresh token secret is required (JWT_REFRESH_SECRET)")
	case c.JWT.AccessSecret == c.JWT.RefreshSecret:
		return invalid("jwt.refresh_secret", "access and refresh secrets must differ")
	case c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost:
		return oops.Code("CONFIG_INVALID").
			With("key", "auth.bcrypt_cost").
			With("value", c.Auth.BcryptCost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	case c.SMTP.Host != "" && (c.SMTP.Port <= 0 || c.SMTP.Port > 65535):
		return invalid("smtp.port", "smtp port out of range")
	}
	return nil
}

func (c *Config) validateLog() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.level").
			Errorf("log level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", msg)
}
