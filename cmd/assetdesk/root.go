// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/assetdesk/assetdesk/internal/config"
	"github.com/assetdesk/assetdesk/internal/logging"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

// NewRootCmd creates the root command for the AssetDesk CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(serveDeps *ServeDeps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "assetdesk",
		Short: "AssetDesk role and permission engine",
		Long: `AssetDesk decides what each dashboard user may see and do. It resolves
role defaults and per-user overrides into effective permissions and serves
access checks over HTTP.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/assetdesk/config.yaml)")

	// Dotted flags map onto config keys. Only flags the user sets override
	// the config file.
	defaults := config.Default()
	pf.String("log.format", defaults.Log.Format, "log format (json or text)")
	pf.String("log.level", defaults.Log.Level, "log level (debug, info, warn, error)")
	pf.String("store.backend", defaults.Store.Backend, "override store backend (memory, file, postgres, redis)")
	pf.String("store.file.dir", defaults.Store.File.Dir, "override directory for the file backend")
	pf.String("store.postgres.url", "", "PostgreSQL URL for the postgres backend (default: DATABASE_URL)")
	pf.Bool("store.postgres.auto_migrate", false, "apply pending migrations when the postgres backend opens")
	pf.String("store.redis.addr", defaults.Store.Redis.Addr, "Redis address for the redis backend")
	pf.Int("store.redis.db", defaults.Store.Redis.DB, "Redis database number")
	pf.String("store.redis.prefix", defaults.Store.Redis.Prefix, "Redis key prefix")
	pf.Duration("store.cache.ttl", defaults.Store.Cache.TTL, "override cache TTL (0 disables the cache)")

	cmd.AddCommand(newServeCmd(opts, serveDeps))
	cmd.AddCommand(NewCheckCmd(opts))
	cmd.AddCommand(NewEffectiveCmd(opts))
	cmd.AddCommand(NewDefaultsCmd(opts))
	cmd.AddCommand(NewOverrideCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))

	return cmd
}

// loadConfig loads the configuration for cmd from the config file and the
// flags set on the command line.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(o.configFile, cmd.Flags())
}

// setupLogging installs the default logger, writing to the command's stderr.
func setupLogging(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	return logging.SetDefault(logging.Options{
		Service: "assetdesk",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
}
