// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package xdg provides XDG Base Directory paths for AssetDesk.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "assetdesk"

func resolve(envVar string, fallback ...string) string {
	base := os.Getenv(envVar)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the XDG config directory for assetdesk.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for assetdesk. The file override
// store lives here by default.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the XDG state directory for assetdesk. The audit trail
// lives here by default.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() string {
	return resolve("XDG_STATE_HOME", ".local", "state")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.In("xdg").With("path", path).Wrapf(err, "failed to create directory")
	}
	return nil
}
