package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 2*time.Second, cfg.Retry.MaxDelay)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "wallet.yaml", `
http:
  addr: ":9090"
store:
  driver: sqlite
  dsn: /var/lib/wallet.db
retry:
  max_attempts: 7
  base_delay: 50ms
  max_delay: 1s
  jitter: 100ms
ledger:
  attempt_timeout: 4s
  lock_timeout: 2s
kafka:
  brokers: ["k1:9092", "k2:9092"]
log:
  level: debug
  format: console
`)

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/wallet.db", cfg.Store.DSN)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.Jitter)
	assert.Equal(t, 4*time.Second, cfg.Ledger.AttemptTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "wallet.transaction_applied", cfg.Kafka.Topic)
	assert.Equal(t, "console", cfg.Log.Format)

	p := cfg.Retry.Policy()
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.Jitter)
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	envFile := writeFile(t, "test.env", `
WALLET_STORE_DRIVER=postgres
WALLET_STORE_DSN=postgres://wallet@localhost/wallet?sslmode=disable
WALLET_RETRY_MAX_ATTEMPTS=4
`)
	t.Setenv("WALLET_RETRY_MAX_ATTEMPTS", "6")
	t.Setenv("WALLET_LEDGER_LOCK_TIMEOUT", "750ms")
	t.Setenv("WALLET_KAFKA_BROKERS", "a:1, b:2,")

	cfg, err := Load("", envFile)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://wallet@localhost/wallet?sslmode=disable", cfg.Store.DSN)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts, "process environment wins over .env")
	assert.Equal(t, 750*time.Millisecond, cfg.Ledger.LockTimeout)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)

	// godotenv.Load sets variables for the process; drop them for other tests.
	for _, k := range []string{"WALLET_STORE_DRIVER", "WALLET_STORE_DSN"} {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := cfg.applyEnv(lookupFrom(map[string]string{"WALLET_RETRY_BASE_DELAY": "soon"}))
	assert.ErrorContains(t, err, "WALLET_RETRY_BASE_DELAY")

	cfg = Default()
	err = cfg.applyEnv(lookupFrom(map[string]string{"WALLET_RETRY_MAX_ATTEMPTS": "ten"}))
	assert.ErrorContains(t, err, "WALLET_RETRY_MAX_ATTEMPTS")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store.dsn"},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }, "store.dsn"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry"},
		{"inverted delays", func(c *Config) { c.Retry.MaxDelay = time.Millisecond }, "retry"},
		{"lock longer than attempt", func(c *Config) { c.Ledger.LockTimeout = time.Minute }, "lock_timeout"},
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }, "http.addr"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestLoadLeavesValidationToCaller(t *testing.T) {
	t.Setenv("WALLET_STORE_DRIVER", "sqlite")

	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.ErrorContains(t, cfg.Validate(), "store.dsn is required")

	cfg.Store.DSN = filepath.Join(t.TempDir(), "wallet.db")
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
