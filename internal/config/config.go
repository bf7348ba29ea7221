// Package config loads client configuration from defaults, an optional YAML
// file, SCOUTME_* environment variables and command-line flags, in that order
// of precedence.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "SCOUTME_"

// Default values.
const (
	DefaultAPIURL     = "http://localhost:8000/api"
	DefaultAPITimeout = 10 * time.Second
	DefaultAppID      = "com.scoutme.client"
	DefaultLogFormat  = "text"
	DefaultBackend    = "preferences"
	DefaultRedisAddr  = "localhost:6379"
	DefaultRedisKey   = "scoutme:"
	DefaultRefresh    = 5 * time.Minute
)

// Storage backends.
const (
	BackendMemory      = "memory"
	BackendPreferences = "preferences"
	BackendSQLite      = "sqlite"
	BackendRedis       = "redis"
)

// Config is the full client configuration.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Debug   bool          `koanf:"debug"`
	Log     LogConfig     `koanf:"log"`
	Storage StorageConfig `koanf:"storage"`
	Redis   RedisConfig   `koanf:"redis"`
	Session SessionConfig `koanf:"session"`
	Metrics MetricsConfig `koanf:"metrics"`
	App     AppConfig     `koanf:"app"`
}

type APIConfig struct {
	URL string `koanf:"url"`
	// Timeout takes a Go duration ("10s"). A bare integer is milliseconds.
	Timeout time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Format string `koanf:"format"`
}

type StorageConfig struct {
	Backend string `koanf:"backend"`
	// Path is the sqlite database file. Empty means ~/.scoutme/session.db.
	Path string `koanf:"path"`
}

type RedisConfig struct {
	Addr   string `koanf:"addr"`
	Prefix string `koanf:"prefix"`
}

type SessionConfig struct {
	// Refresh is the interval between /me refreshes. Zero disables them.
	Refresh time.Duration `koanf:"refresh"`
}

type MetricsConfig struct {
	// Addr enables a /metrics endpoint when non-empty.
	Addr string `koanf:"addr"`
}

type AppConfig struct {
	ID string `koanf:"id"`
}

func defaults() map[string]any {
	return map[string]any{
		"api.url":         DefaultAPIURL,
		"api.timeout":     DefaultAPITimeout.String(),
		"debug":           false,
		"log.format":      DefaultLogFormat,
		"storage.backend": DefaultBackend,
		"storage.path":    "",
		"redis.addr":      DefaultRedisAddr,
		"redis.prefix":    DefaultRedisKey,
		"session.refresh": DefaultRefresh.String(),
		"metrics.addr":    "",
		"app.id":          DefaultAppID,
	}
}

// RegisterFlags declares the command-line flags understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file path (YAML)")
	fs.String("api.url", DefaultAPIURL, "backend API base URL")
	fs.Duration("api.timeout", DefaultAPITimeout, "backend request timeout")
	fs.Bool("debug", false, "log every API request and response")
	fs.String("log.format", DefaultLogFormat, "log format (json or text)")
	fs.String("storage.backend", DefaultBackend, "session storage backend (memory, preferences, sqlite, redis)")
	fs.String("storage.path", "", "sqlite database path")
	fs.String("redis.addr", DefaultRedisAddr, "redis address for the redis storage backend")
	fs.Duration("session.refresh", DefaultRefresh, "interval between user refreshes (0 = disabled)")
	fs.String("metrics.addr", "", "serve prometheus metrics on this address (empty = disabled)")
}

// Load builds the configuration. fs may be nil; only flags that were
// explicitly set override the other sources.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k, err := load(fs)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Dump renders the merged configuration sources as YAML.
func Dump(fs *pflag.FlagSet) ([]byte, error) {
	k, err := load(fs)
	if err != nil {
		return nil, err
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

func load(fs *pflag.FlagSet) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	if err := millisToDuration(k, "api.timeout"); err != nil {
		return nil, err
	}
	return k, nil
}

// millisToDuration rewrites an integer value at key (SCOUTME_API_TIMEOUT=10000
// or "timeout: 10000" in YAML) as a duration in milliseconds.
func millisToDuration(k *koanf.Koanf, key string) error {
	var ms int64
	switch v := k.Get(key).(type) {
	case int:
		ms = int64(v)
	case int64:
		ms = v
	case float64:
		ms = int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil
		}
		ms = n
	default:
		return nil
	}
	if err := k.Set(key, (time.Duration(ms) * time.Millisecond).String()); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// envKey maps SCOUTME_API_URL to api.url.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.API.URL == "" {
		return fmt.Errorf("api.url is required")
	}
	if !strings.HasPrefix(c.API.URL, "http://") && !strings.HasPrefix(c.API.URL, "https://") {
		return fmt.Errorf("api.url must be an http(s) URL, got %q", c.API.URL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendPreferences, BackendSQLite:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, preferences, sqlite, redis, got %q", c.Storage.Backend)
	}
	if c.Session.Refresh < 0 {
		return fmt.Errorf("session.refresh must not be negative, got %s", c.Session.Refresh)
	}
	if c.App.ID == "" {
		return fmt.Errorf("app.id is required")
	}
	return nil
}
