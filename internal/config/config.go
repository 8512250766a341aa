// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

// Package config loads AssetDesk configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// command-line flags that were explicitly set. The result is validated before
// it is returned.
package config

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/assetdesk/assetdesk/internal/xdg"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the complete AssetDesk configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server" yaml:"server" json:"server"`
	Metrics MetricsConfig `koanf:"metrics" yaml:"metrics" json:"metrics"`
	Log     LogConfig     `koanf:"log" yaml:"log" json:"log"`
	Store   StoreConfig   `koanf:"store" yaml:"store" json:"store"`
	Audit   AuditConfig   `koanf:"audit" yaml:"audit" json:"audit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr              string        `koanf:"addr" yaml:"addr" json:"addr" validate:"required" jsonschema:"description=HTTP listen address"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" yaml:"read_header_timeout" json:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	// RateLimit is the number of requests each client (user, or IP when
	// unauthenticated) may make per minute.
	// Zero disables rate limiting.
	RateLimit int `koanf:"rate_limit" yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	// Addr is the metrics/health listen address. Empty disables the server.
	Addr string `koanf:"addr" yaml:"addr" json:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" json:"format" validate:"oneof=json text" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StoreConfig selects and configures the permission override store.
type StoreConfig struct {
	Backend  string         `koanf:"backend" yaml:"backend" json:"backend" validate:"oneof=memory file postgres redis" jsonschema:"enum=memory,enum=file,enum=postgres,enum=redis"`
	File     FileConfig     `koanf:"file" yaml:"file" json:"file"`
	Postgres PostgresConfig `koanf:"postgres" yaml:"postgres" json:"postgres"`
	Redis    RedisConfig    `koanf:"redis" yaml:"redis" json:"redis"`
	Retry    RetryConfig    `koanf:"retry" yaml:"retry" json:"retry"`
	Cache    CacheConfig    `koanf:"cache" yaml:"cache" json:"cache"`
}

// FileConfig configures the file store.
type FileConfig struct {
	Dir string `koanf:"dir" yaml:"dir" json:"dir"`
}

// PostgresConfig configures the Postgres store.
type PostgresConfig struct {
	// URL is the connection string. Falls back to DATABASE_URL when empty.
	URL         string `koanf:"url" yaml:"url" json:"url"`
	AutoMigrate bool   `koanf:"auto_migrate" yaml:"auto_migrate" json:"auto_migrate"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `koanf:"addr" yaml:"addr" json:"addr"`
	Password string `koanf:"password" yaml:"password" json:"password"`
	DB       int    `koanf:"db" yaml:"db" json:"db" validate:"gte=0"`
	Prefix   string `koanf:"prefix" yaml:"prefix" json:"prefix"`
}

// RetryConfig configures load retries. Zero attempts disables retrying.
type RetryConfig struct {
	Attempts uint64        `koanf:"attempts" yaml:"attempts" json:"attempts"`
	Base     time.Duration `koanf:"base" yaml:"base" json:"base" validate:"gte=0"`
	Max      time.Duration `koanf:"max" yaml:"max" json:"max" validate:"gte=0"`
}

// CacheConfig configures the override read cache. A zero TTL disables it.
// With the postgres backend, entries are also invalidated by LISTEN/NOTIFY.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl" yaml:"ttl" json:"ttl" validate:"gte=0"`
}

// AuditConfig configures the denial audit trail.
type AuditConfig struct {
	Mode   string `koanf:"mode" yaml:"mode" json:"mode" validate:"oneof=off denials" jsonschema:"enum=off,enum=denials"`
	Sink   string `koanf:"sink" yaml:"sink" json:"sink" validate:"oneof=slog jsonl" jsonschema:"enum=slog,enum=jsonl"`
	Path   string `koanf:"path" yaml:"path" json:"path"`
	Buffer int    `koanf:"buffer" yaml:"buffer" json:"buffer" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RateLimit:         600,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Store: StoreConfig{
			Backend: BackendFile,
			File:    FileConfig{Dir: filepath.Join(xdg.DataDir(), "overrides")},
			Redis:   RedisConfig{Addr: "127.0.0.1:6379", Prefix: "assetdesk:permissions"},
			Retry:   RetryConfig{Attempts: 3, Base: 50 * time.Millisecond, Max: time.Second},
		},
		Audit: AuditConfig{
			Mode:   "denials",
			Sink:   "slog",
			Path:   filepath.Join(xdg.StateDir(), "audit.jsonl"),
			Buffer: 1024,
		},
	}
}

// DefaultPath returns the config file consulted when none is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load builds the configuration from defaults, the YAML file at path, and
// flags. An empty path tries DefaultPath and skips it if it does not exist;
// an explicit path must exist. Only flags the user set override earlier
// layers. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
		}
	} else if explicit {
		return nil, oops.In("config").Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, changedOnly(flags)), nil); err != nil {
			return nil, oops.In("config").Code("CONFIG_PARSE_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Code("CONFIG_PARSE_FAILED").Wrap(err)
	}
	if cfg.Store.Postgres.URL == "" {
		cfg.Store.Postgres.URL = os.Getenv("DATABASE_URL")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// changedOnly maps a flag to its config key, skipping flags left at their
// default so they cannot mask values from the config file.
func changedOnly(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		if !f.Changed {
			return "", nil
		}
		return f.Name, posflag.FlagVal(fs, f)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return oops.In("config").Code("CONFIG_INVALID").Wrap(err)
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.File.Dir == "" {
			return oops.In("config").Code("CONFIG_INVALID").Errorf("store.file.dir is required for the file backend")
		}
	case BackendPostgres:
		if c.Store.Postgres.URL == "" {
			return oops.In("config").Code("CONFIG_INVALID").
				Hint("set store.postgres.url or DATABASE_URL").
				Errorf("store.postgres.url is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return oops.In("config").Code("CONFIG_INVALID").Errorf("store.redis.addr is required for the redis backend")
		}
	}
	if c.Audit.Mode != "off" && c.Audit.Sink == "jsonl" && c.Audit.Path == "" {
		return oops.In("config").Code("CONFIG_INVALID").Errorf("audit.path is required for the jsonl sink")
	}
	return nil
}

const redacted = "********"

// Redacted returns a copy of c with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.Store.Redis.Password != "" {
		c.Store.Redis.Password = redacted
	}
	if u, err := url.Parse(c.Store.Postgres.URL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
			c.Store.Postgres.URL = u.String()
		}
	}
	return c
}

// GenerateSchema returns the JSON Schema of the configuration file.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})
	schema.Title = "AssetDesk Configuration"
	schema.Description = "Schema for the AssetDesk config.yaml file"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("config").Code("SCHEMA_GENERATION_FAILED").Wrap(err)
	}
	return data, nil
}
