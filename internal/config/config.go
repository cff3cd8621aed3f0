// Package config loads service configuration from defaults, an optional YAML
// file, .env files and WALLET_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sheikh-saqib/wallet-ledger/internal/retry"
	"gopkg.in/yaml.v3"
)

const envPrefix = "WALLET_"

// Config represents the complete service configuration
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Store  StoreConfig  `yaml:"store"`
	Retry  RetryConfig  `yaml:"retry"`
	Ledger LedgerConfig `yaml:"ledger"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Log    LogConfig    `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string        `yaml:"driver"` // "memory", "postgres" or "sqlite"
	DSN         string        `yaml:"dsn"`    // postgres connection string or sqlite file path
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      time.Duration `yaml:"jitter"`
}

// Policy converts the settings into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.Jitter,
	}
}

// LedgerConfig bounds a single atomic unit.
type LedgerConfig struct {
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
}

// KafkaConfig enables event publication when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:      "memory",
			BusyTimeout: 5 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: p.MaxAttempts,
			BaseDelay:   p.BaseDelay,
			MaxDelay:    p.MaxDelay,
			Jitter:      p.Jitter,
		},
		Ledger: LedgerConfig{
			AttemptTimeout: 5 * time.Second,
			LockTimeout:    3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "wallet.transaction_applied",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path may be empty; envFiles that do not exist
// are skipped. Variables already present in the environment win over .env values.
// The result is not validated so callers can layer flags on top; call Validate last.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("HTTP_ADDR", &c.HTTP.Addr)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}

	if v, ok := lookup(envPrefix + "RETRY_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRY_MAX_ATTEMPTS: %w", envPrefix, err)
		}
		c.Retry.MaxAttempts = n
	}

	for key, dst := range map[string]*time.Duration{
		"HTTP_SHUTDOWN_TIMEOUT":  &c.HTTP.ShutdownTimeout,
		"STORE_BUSY_TIMEOUT":     &c.Store.BusyTimeout,
		"RETRY_BASE_DELAY":       &c.Retry.BaseDelay,
		"RETRY_MAX_DELAY":        &c.Retry.MaxDelay,
		"RETRY_JITTER":           &c.Retry.Jitter,
		"LEDGER_ATTEMPT_TIMEOUT": &c.Ledger.AttemptTimeout,
		"LEDGER_LOCK_TIMEOUT":    &c.Ledger.LockTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be 'memory', 'postgres' or 'sqlite', got %q", c.Store.Driver)
	}

	if err := c.Retry.Policy().Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Ledger.AttemptTimeout < 0 || c.Ledger.LockTimeout < 0 {
		return errors.New("ledger timeouts must not be negative")
	}
	if c.Ledger.AttemptTimeout > 0 && c.Ledger.LockTimeout > c.Ledger.AttemptTimeout {
		return fmt.Errorf("ledger.lock_timeout %s exceeds ledger.attempt_timeout %s", c.Ledger.LockTimeout, c.Ledger.AttemptTimeout)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}
	return nil
}
