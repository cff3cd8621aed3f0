package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t    *testing.T
	base []string
}

func newSQLiteHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	return &harness{t: t, base: []string{
		"--driver", "sqlite",
		"--dsn", filepath.Join(dir, "wallet.db"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "error",
	}}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(append([]string{}, h.base...), args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(args...)
	require.NoError(h.t, err, "wallet %s", strings.Join(args, " "))
	return out
}

func TestAccountLifecycle(t *testing.T) {
	h := newSQLiteHarness(t)

	id := strings.TrimSpace(h.mustRun("account", "create", "--balance", "1000"))
	require.NotEmpty(t, id)

	out := h.mustRun("apply", id, "DEPOSIT", "500")
	assert.Contains(t, out, "deposit 500.00")
	assert.Contains(t, out, "balance 1500.00")

	out = h.mustRun("apply", id, "withdraw", "300")
	assert.Contains(t, out, "balance 1200.00")

	assert.Equal(t, "1200.00\n", h.mustRun("balance", id))

	lines := strings.Split(strings.TrimSpace(h.mustRun("history", id)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "DIRECTION")
	assert.Contains(t, lines[1], "deposit")
	assert.Contains(t, lines[2], "withdraw")

	assert.Equal(t, "ok: balance 1200.00 matches 2 entries\n", h.mustRun("verify", id))
}

func TestApplyRejections(t *testing.T) {
	h := newSQLiteHarness(t)
	id := strings.TrimSpace(h.mustRun("account", "create", "--balance", "100"))

	_, err := h.run("apply", id, "withdraw", "150")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	_, err = h.run("apply", id, "deposit", "0")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = h.run("apply", id, "refund", "5")
	assert.ErrorIs(t, err, ledger.ErrInvalidDirection)

	_, err = h.run("apply", "00000000-0000-0000-0000-000000000000", "deposit", "5")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	assert.Equal(t, "100.00\n", h.mustRun("balance", id))
}

func TestApplyIdempotencyKey(t *testing.T) {
	h := newSQLiteHarness(t)
	id := strings.TrimSpace(h.mustRun("account", "create"))

	first := h.mustRun("apply", id, "deposit", "5", "--idempotency-key", "k-1")
	assert.NotContains(t, first, "replayed")

	second := h.mustRun("apply", id, "deposit", "5", "--idempotency-key", "k-1")
	assert.Contains(t, second, "replayed")
	assert.Contains(t, second, "balance 5.00")

	assert.Equal(t, "5.00\n", h.mustRun("balance", id))
}

func TestAccountCreateRejectsBadBalance(t *testing.T) {
	h := newSQLiteHarness(t)

	_, err := h.run("account", "create", "--balance", "-1")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = h.run("account", "create", "--balance", "lots")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestMigrate(t *testing.T) {
	h := newSQLiteHarness(t)
	assert.Equal(t, "schema ready (sqlite)\n", h.mustRun("migrate"))
}

func TestUnknownDriver(t *testing.T) {
	h := newSQLiteHarness(t)
	h.base[1] = "mysql"

	_, err := h.run("balance", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestDSNFlagCompletesEnvConfig(t *testing.T) {
	t.Setenv("WALLET_STORE_DRIVER", "sqlite")

	dir := t.TempDir()
	h := &harness{t: t, base: []string{
		"--dsn", filepath.Join(dir, "wallet.db"),
		"--env-file", filepath.Join(dir, "missing.env"),
		"--log-level", "error",
	}}

	id := strings.TrimSpace(h.mustRun("account", "create", "--balance", "7"))
	assert.Equal(t, "7.00\n", h.mustRun("balance", id))

	h.base = h.base[2:]
	_, err := h.run("balance", id)
	assert.ErrorContains(t, err, "store.dsn is required")
}

func TestArgumentCount(t *testing.T) {
	h := newSQLiteHarness(t)

	_, err := h.run("apply", "only-id")
	assert.Error(t, err)
}
