// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		envVal string
		fn     func() string
		want   string
	}{
		{"config from env", "XDG_CONFIG_HOME", "/custom/config", ConfigDir, "/custom/config/assetdesk"},
		{"config default", "XDG_CONFIG_HOME", "", ConfigDir, "/home/testuser/.config/assetdesk"},
		{"data from env", "XDG_DATA_HOME", "/custom/data", DataDir, "/custom/data/assetdesk"},
		{"data default", "XDG_DATA_HOME", "", DataDir, "/home/testuser/.local/share/assetdesk"},
		{"state from env", "XDG_STATE_HOME", "/custom/state", StateDir, "/custom/state/assetdesk"},
		{"state default", "XDG_STATE_HOME", "", StateDir, "/home/testuser/.local/state/assetdesk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", "/home/testuser")
			t.Setenv(tt.envVar, tt.envVal)
			assert.Equal(t, tt.want, tt.fn())
		})
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, EnsureDir(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	require.NoError(t, EnsureDir(path), "EnsureDir must be idempotent")
}

func TestEnsureDir_BlockedByFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	assert.Error(t, EnsureDir(filepath.Join(blocker, "sub")))
}
