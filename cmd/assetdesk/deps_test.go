// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/access"
	accessstore "github.com/assetdesk/assetdesk/internal/access/store"
	"github.com/assetdesk/assetdesk/internal/config"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := isolate(t)
	cfg := config.Default()
	cfg.Store.File.Dir = filepath.Join(dir, "overrides")
	cfg.Audit.Path = filepath.Join(dir, "audit.jsonl")
	return &cfg
}

func TestOpenStore_Backends(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = config.BackendMemory
		cfg.Store.Retry.Attempts = 0

		st, err := openStore(ctx, cfg, slog.Default(), nil)
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &accessstore.MemoryStore{}, st.OverrideStore)
	})

	t.Run("file with retries", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = config.BackendFile

		st, err := openStore(ctx, cfg, slog.Default(), nil)
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &accessstore.RetryStore{}, st.OverrideStore)

		require.NoError(t, st.SaveOverride(ctx, "u-1", access.Override{access.ModuleTickets: {access.ActionClose: true}}))
		_, err = os.Stat(filepath.Join(cfg.Store.File.Dir, "u-1.json"))
		assert.NoError(t, err)
	})

	t.Run("memory with cache", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = config.BackendMemory
		cfg.Store.Cache.TTL = time.Minute

		st, err := openStore(ctx, cfg, slog.Default(), nil)
		require.NoError(t, err)
		defer st.Close()
		assert.IsType(t, &accessstore.CachedStore{}, st.OverrideStore)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.Store.Backend = config.BackendRedis
		cfg.Store.Redis.Addr = mr.Addr()

		st, err := openStore(ctx, cfg, slog.Default(), nil)
		require.NoError(t, err)
		defer st.Close()

		require.NoError(t, st.SaveOverride(ctx, "u-1", access.Override{access.ModuleTickets: {access.ActionClose: true}}))
		assert.True(t, mr.Exists("assetdesk:permissions:u-1"))
	})

	t.Run("postgres migration failure", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = config.BackendPostgres
		cfg.Store.Postgres.URL = "postgres://db/assetdesk"
		cfg.Store.Postgres.AutoMigrate = true

		var migrated string
		_, err := openStore(ctx, cfg, slog.Default(), &StoreDeps{Migrate: func(url string) error {
			migrated = url
			return errors.New("connection refused")
		}})
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
		assert.Equal(t, "postgres://db/assetdesk", migrated)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = "sqlite"

		_, err := openStore(ctx, cfg, slog.Default(), nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}

func TestOpenRecorder(t *testing.T) {
	t.Run("off", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Audit.Mode = "off"

		rec, err := openRecorder(cfg, slog.Default())
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("jsonl", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Audit.Sink = "jsonl"

		rec, err := openRecorder(cfg, slog.Default())
		require.NoError(t, err)
		require.NotNil(t, rec)

		ev := newEvaluator(accessstore.NewMemoryStore(), rec, slog.Default())
		assert.False(t, ev.CanAccess(context.Background(), access.User{ID: "u-1", Role: access.RolePortal}, access.ModuleDevices, access.ActionView))
		require.NoError(t, rec.Close(context.Background()))

		data, err := os.ReadFile(cfg.Audit.Path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"module":"devices"`)
	})

	t.Run("invalid mode", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Audit.Mode = "all"

		_, err := openRecorder(cfg, slog.Default())
		errutil.AssertErrorCode(t, err, "INVALID_AUDIT_MODE")
	})
}
