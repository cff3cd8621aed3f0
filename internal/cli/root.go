// Package cli wires configuration, storage and the ledger into cobra commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	driver     string
	dsn        string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "wallet",
		Short:         "Wallet ledger: concurrency-safe balances over an append-only ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before WALLET_* variables are read")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "Store driver: memory|postgres|sqlite (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "Store DSN or sqlite file path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newAccountCmd(opts),
		newApplyCmd(opts),
		newBalanceCmd(opts),
		newHistoryCmd(opts),
		newVerifyCmd(opts),
	)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
