// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/credguard/internal/errs"
	"github.com/and161185/credguard/internal/service"
)

// Supported storage backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

const envPrefix = "CREDGUARD"

// OverrideDSN is the override key for the connection target of the selected
// store: DATABASE_URL, SQLITE_PATH or REDIS_ADDR.
const OverrideDSN = "DSN"

// Config holds all settings of the credguard tool.
type Config struct {
	Store       string `mapstructure:"STORE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisPrefix string `mapstructure:"REDIS_PREFIX"`

	HashAlgorithm   string `mapstructure:"HASH_ALGORITHM"`
	SaltWorkFactor  int    `mapstructure:"SALT_WORK_FACTOR"`
	MaxAuthAttempts int    `mapstructure:"MAX_AUTH_ATTEMPTS"`
	AccountLockTime int    `mapstructure:"ACCOUNT_LOCK_TIME"` // seconds

	AMQPURL        string `mapstructure:"AMQP_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var keys = []string{
	"STORE", "DATABASE_URL", "SQLITE_PATH", "REDIS_ADDR", "REDIS_PREFIX",
	"HASH_ALGORITHM", "SALT_WORK_FACTOR", "MAX_AUTH_ATTEMPTS", "ACCOUNT_LOCK_TIME",
	"AMQP_URL", "EVENTS_EXCHANGE", "LOG_LEVEL",
}

// Load reads CREDGUARD_* environment variables on top of the defaults.
// Non-empty overrides (keyed without the prefix) win over the environment;
// OverrideDSN sets the connection target of whichever store is selected.
func Load(overrides map[string]string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetDefault("STORE", StoreSQLite)
	v.SetDefault("SQLITE_PATH", "credguard.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PREFIX", "credguard")
	v.SetDefault("HASH_ALGORITHM", service.DefaultHashAlgorithm)
	v.SetDefault("SALT_WORK_FACTOR", service.DefaultSaltWorkFactor)
	v.SetDefault("MAX_AUTH_ATTEMPTS", service.DefaultMaxAuthAttempts)
	v.SetDefault("ACCOUNT_LOCK_TIME", int(service.DefaultAccountLockTime/time.Second))
	v.SetDefault("EVENTS_EXCHANGE", "credguard.events")
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	// Bind explicitly so Unmarshal sees env-only keys.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	var dsn string
	for k, val := range overrides {
		k = strings.ToUpper(k)
		switch {
		case val == "":
		case k == OverrideDSN:
			dsn = val
		default:
			v.Set(k, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrValidation, err)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if dsn != "" {
		cfg.setDSN(dsn)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDSN points the selected store at dsn.
func (c *Config) setDSN(dsn string) {
	switch c.Store {
	case StorePostgres:
		c.DatabaseURL = dsn
	case StoreSQLite:
		c.SQLitePath = dsn
	case StoreRedis:
		c.RedisAddr = dsn
	}
}

// Validate checks that the selected backend is configured.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: %s_DATABASE_URL is required for the postgres store", errs.ErrValidation, envPrefix)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: %s_SQLITE_PATH is required for the sqlite store", errs.ErrValidation, envPrefix)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: %s_REDIS_ADDR is required for the redis store", errs.ErrValidation, envPrefix)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", errs.ErrValidation, c.Store)
	}
	if c.SaltWorkFactor < 0 || c.MaxAuthAttempts < 0 || c.AccountLockTime < 0 {
		return fmt.Errorf("%w: numeric settings must not be negative", errs.ErrValidation)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrValidation, err)
	}
	return nil
}

// Options converts the hashing and lockout settings.
func (c *Config) Options() service.Options {
	return service.Options{
		HashAlgorithm:   c.HashAlgorithm,
		SaltWorkFactor:  c.SaltWorkFactor,
		MaxAuthAttempts: c.MaxAuthAttempts,
		AccountLockTime: time.Duration(c.AccountLockTime) * time.Second,
	}
}

// Level returns the configured log level; Validate guarantees it parses.
func (c *Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
