// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/assetdesk/assetdesk/internal/access"
	accessstore "github.com/assetdesk/assetdesk/internal/access/store"
	"github.com/assetdesk/assetdesk/internal/audit"
	"github.com/assetdesk/assetdesk/internal/config"
	"github.com/assetdesk/assetdesk/internal/store"
)

// Store wraps the override store with the resources backing it.
type Store struct {
	access.OverrideStore
	closers []func()
}

// Close releases the backend's connections.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// StoreDeps contains injectable constructors for the store backends.
// All fields with nil values will use their default implementations.
type StoreDeps struct {
	// Migrate applies pending migrations to the database at url.
	// Default: store.NewMigrator followed by Up
	Migrate func(url string) error

	// RedisClient creates the Redis client.
	// Default: redis.NewClient
	RedisClient func(opts *redis.Options) redis.UniversalClient

	// Listener creates the change listener that invalidates the override
	// cache for the postgres backend.
	// Default: accessstore.NewPgListener
	Listener func(url string) accessstore.Listener
}

// openStore builds the configured override store, wrapped in a RetryStore
// when retries are enabled and in a CachedStore when the cache has a TTL.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *StoreDeps) (*Store, error) {
	if deps == nil {
		deps = &StoreDeps{}
	}
	if deps.Migrate == nil {
		deps.Migrate = migrateUp
	}
	if deps.Listener == nil {
		deps.Listener = func(url string) accessstore.Listener {
			return accessstore.NewPgListener(url)
		}
	}
	if deps.RedisClient == nil {
		deps.RedisClient = func(opts *redis.Options) redis.UniversalClient {
			return redis.NewClient(opts)
		}
	}

	s := &Store{}
	switch cfg.Store.Backend {
	case config.BackendMemory:
		s.OverrideStore = accessstore.NewMemoryStore()
	case config.BackendFile:
		fs, err := accessstore.NewFileStore(cfg.Store.File.Dir)
		if err != nil {
			return nil, err
		}
		s.OverrideStore = fs
	case config.BackendPostgres:
		if cfg.Store.Postgres.AutoMigrate {
			if err := deps.Migrate(cfg.Store.Postgres.URL); err != nil {
				return nil, oops.In("cli").Code("MIGRATION_FAILED").Wrap(err)
			}
		}
		pool, err := store.OpenPool(ctx, cfg.Store.Postgres.URL)
		if err != nil {
			return nil, err
		}
		s.OverrideStore = accessstore.NewPostgresStore(pool)
		s.closers = append(s.closers, pool.Close)
	case config.BackendRedis:
		client := deps.RedisClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		s.OverrideStore = accessstore.NewRedisStore(client, cfg.Store.Redis.Prefix)
		s.closers = append(s.closers, func() {
			if err := client.Close(); err != nil {
				logger.Debug("error closing redis client", "error", err)
			}
		})
	default:
		return nil, oops.In("cli").Code("CONFIG_INVALID").With("backend", cfg.Store.Backend).
			Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	if cfg.Store.Retry.Attempts > 0 {
		s.OverrideStore = accessstore.NewRetryStore(s.OverrideStore,
			accessstore.WithRetryAttempts(cfg.Store.Retry.Attempts),
			accessstore.WithRetryBackoff(cfg.Store.Retry.Base, cfg.Store.Retry.Max))
	}
	if cfg.Store.Cache.TTL > 0 {
		cache := accessstore.NewCachedStore(s.OverrideStore,
			accessstore.WithCacheTTL(cfg.Store.Cache.TTL),
			accessstore.WithCacheLogger(logger.With("component", "override_cache")))
		if cfg.Store.Backend == config.BackendPostgres {
			watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			cache.Watch(watchCtx, deps.Listener(cfg.Store.Postgres.URL))
			s.closers = append(s.closers, func() {
				cancel()
				cache.Wait()
			})
		}
		s.OverrideStore = cache
	}
	return s, nil
}

func migrateUp(url string) error {
	m, err := store.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Debug("error closing migrator", "error", closeErr)
		}
	}()
	return m.Up()
}

// openRecorder builds the audit recorder, or returns nil when auditing is
// off.
func openRecorder(cfg *config.Config, logger *slog.Logger) (*audit.Recorder, error) {
	mode, err := audit.ParseMode(cfg.Audit.Mode)
	if err != nil {
		return nil, err
	}
	if mode == audit.ModeOff {
		return nil, nil
	}

	var w audit.Writer
	switch cfg.Audit.Sink {
	case "jsonl":
		jw, err := audit.NewJSONLWriter(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		w = jw
	default:
		w = audit.NewSlogWriter(logger.With("component", "audit"))
	}
	return audit.NewRecorder(mode, w,
		audit.WithBuffer(cfg.Audit.Buffer),
		audit.WithRecorderLogger(logger.With("component", "audit"))), nil
}

// newEvaluator builds the evaluator over st, reporting denials to rec when
// it is non-nil.
func newEvaluator(st access.OverrideStore, rec *audit.Recorder, logger *slog.Logger) *access.Evaluator {
	opts := []access.Option{access.WithLogger(logger)}
	if rec != nil {
		opts = append(opts, access.WithDenialHook(rec.Hook()))
	}
	return access.NewEvaluator(access.NewDefaultResolver(), st, opts...)
}
