// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

// Package xdg resolves XDG Base Directory paths for FormDeck.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "formdeck"

// Getenv looks up an environment variable, returning "" when unset.
type Getenv func(key string) string

// ConfigDir returns the FormDeck config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir(getenv Getenv) string {
	if getenv == nil {
		getenv = os.Getenv
	}
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the path of config.yaml inside ConfigDir.
func ConfigFile(getenv Getenv) string {
	return filepath.Join(ConfigDir(getenv), "config.yaml")
}

// FromMap adapts an environment map to Getenv. A nil map reads the process
// environment.
func FromMap(environ map[string]string) Getenv {
	if environ == nil {
		return os.Getenv
	}
	return func(key string) string { return environ[key] }
}
