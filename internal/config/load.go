// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/formdeck/formdeck/internal/xdg"
)

// Flag names registered by RegisterFlags, mapped to their config keys.
var flagKeys = map[string]string{
	"config":       "",
	"env":          "env",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// RegisterFlags adds the overridable settings to fs. Flag defaults mirror
// Default so help output is accurate; only flags the user sets are applied.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML config file")
	fs.String("env", d.Env, "deployment environment (production enables Secure cookies)")
	fs.String("http-addr", d.HTTP.Addr, "public API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Bool("auto-migrate", d.Database.AutoMigrate, "apply pending migrations at startup")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
}

// Options controls Load.
type Options struct {
	// File is a YAML file to read. Empty skips the file layer.
	File string
	// Flags holds parsed command-line flags. Nil skips the flag layer.
	Flags *pflag.FlagSet
	// Environ replaces the process environment when non-nil.
	Environ map[string]string
}

// Load builds a Config from defaults, opts.File, the environment and
// changed flags. It does not validate.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
		if err := unmarshal(k, &cfg); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("file", opts.File).Wrap(err)
		}
	}

	envOpts := env.Options{}
	if opts.Environ != nil {
		envOpts.Environment = opts.Environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return nil, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}

	if opts.Flags != nil {
		k := koanf.New(".")
		provider := posflag.ProviderWithFlag(opts.Flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key := flagKeys[f.Name]
			if key == "" || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
		if err := unmarshal(k, &cfg); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	return &cfg, nil
}

// FileFlag returns the --config value, or "" when fs has no such flag.
func FileFlag(fs *pflag.FlagSet) string {
	path, err := fs.GetString("config")
	if err != nil {
		return ""
	}
	return path
}

// ResolveFile returns explicit when set. Otherwise it returns the XDG
// config.yaml if one exists, or "" to skip the file layer.
func ResolveFile(explicit string, environ map[string]string) string {
	if explicit != "" {
		return explicit
	}
	candidate := xdg.ConfigFile(xdg.FromMap(environ))
	if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	return candidate
}

func unmarshal(k *koanf.Koanf, cfg *Config) error {
	//nolint:wrapcheck // callers attach source context
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"})
}
