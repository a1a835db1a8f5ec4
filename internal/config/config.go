package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type (
	// Config holds application settings for the taskkit CLI
	Config struct {
		// Logging
		LogLevel string

		// Vars store
		StoreBackend string
		RedisAddr    string
		RedisPass    string
		RedisDB      int
		RedisPrefix  string

		// Run integrations
		WebhookURL    string
		ArchiveURL    string
		ArchivePrefix string
		SchemaDir     string

		// Step execution
		HTTPTimeoutSeconds int
		RetryDelayMS       int
	}
)

const (
	// StoreFile persists vars to the run's vars file
	StoreFile = "file"

	// StoreRedis persists vars to a redis key shared across processes
	StoreRedis = "redis"
)

const (
	DefaultLogLevel     = "info"
	DefaultStoreBackend = StoreFile
	DefaultRedisAddr    = "localhost:6379"
	DefaultRedisDB      = 0
	DefaultRedisPrefix  = "taskkit"

	DefaultHTTPTimeoutSeconds = 30
	DefaultRetryDelayMS       = 1000

	MaxHTTPTimeoutSeconds = 3600
	MaxRetryDelayMS       = 60_000
	MaxRedisDB            = 15
)

var (
	ErrInvalidStoreBackend = errors.New("invalid store backend")
	ErrRedisAddrRequired   = errors.New("redis address is required")
)

// NewDefaultConfig creates a configuration with sensible defaults for
// every CLI setting
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel:           DefaultLogLevel,
		StoreBackend:       DefaultStoreBackend,
		RedisAddr:          DefaultRedisAddr,
		RedisDB:            DefaultRedisDB,
		RedisPrefix:        DefaultRedisPrefix,
		HTTPTimeoutSeconds: DefaultHTTPTimeoutSeconds,
		RetryDelayMS:       DefaultRetryDelayMS,
	}
}

// LoadFromEnv populates configuration values from environment
// variables. Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if backend := os.Getenv("TASKKIT_STORE"); backend != "" {
		c.StoreBackend = backend
	}
	if addr := os.Getenv("TASKKIT_REDIS_ADDR"); addr != "" {
		c.RedisAddr = addr
	}
	if pass := os.Getenv("TASKKIT_REDIS_PASSWORD"); pass != "" {
		c.RedisPass = pass
	}
	if prefix := os.Getenv("TASKKIT_REDIS_PREFIX"); prefix != "" {
		c.RedisPrefix = prefix
	}
	if url := os.Getenv("TASKKIT_WEBHOOK_URL"); url != "" {
		c.WebhookURL = url
	}
	if url := os.Getenv("TASKKIT_ARCHIVE_URL"); url != "" {
		c.ArchiveURL = url
	}
	if prefix := os.Getenv("TASKKIT_ARCHIVE_PREFIX"); prefix != "" {
		c.ArchivePrefix = prefix
	}
	if dir := os.Getenv("TASKKIT_SCHEMA_DIR"); dir != "" {
		c.SchemaDir = dir
	}

	if err := loadEnvInt(
		"TASKKIT_REDIS_DB", &c.RedisDB, -1, MaxRedisDB,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"TASKKIT_HTTP_TIMEOUT_SECONDS",
		&c.HTTPTimeoutSeconds, 0, MaxHTTPTimeoutSeconds,
	); err != nil {
		return err
	}
	return loadEnvInt(
		"TASKKIT_RETRY_DELAY_MS", &c.RetryDelayMS, 0, MaxRetryDelayMS,
	)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.StoreBackend != StoreFile && c.StoreBackend != StoreRedis {
		return fmt.Errorf("%w: %s", ErrInvalidStoreBackend, c.StoreBackend)
	}
	if c.StoreBackend == StoreRedis && c.RedisAddr == "" {
		return ErrRedisAddrRequired
	}
	return nil
}

// HTTPTimeout returns the step HTTP client timeout as a duration
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between failed step attempts as a
// duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// loadEnvInt reads key from the environment, parses it as an integer,
// and sets *dst if the value is in the range (min, max). Returns an
// error if the value cannot be parsed or falls outside the valid
// range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
