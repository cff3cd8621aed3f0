package cli

import (
	"fmt"

	"github.com/sheikh-saqib/wallet-ledger/internal/storage/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			switch s := a.store.(type) {
			case *postgres.PostgresLedgerStore:
				if err := s.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate postgres: %w", err)
				}
			default:
				// sqlite applies its schema on open; memory has none
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", a.cfg.Store.Driver)
			return nil
		},
	}
}
