package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/sheikh-saqib/wallet-ledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newAccountCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newAccountCreateCmd(opts))
	return cmd
}

func newAccountCreateCmd(opts *rootOptions) *cobra.Command {
	var balance string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opening, err := decimal.NewFromString(balance)
			if err != nil {
				return fmt.Errorf("%w: %q is not a decimal number", ledger.ErrInvalidAmount, balance)
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, err := a.ledger.OpenAccount(cmd.Context(), opening)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), acct.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&balance, "balance", "0", "Opening balance")
	return cmd
}

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "apply <account-id> <deposit|withdraw> <amount>",
		Short: "Deposit to or withdraw from an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := ledger.ParseDirection(args[1])
			if err != nil {
				return err
			}
			amount, err := ledger.ParseAmount(args[2])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var applyOpts []ledger.ApplyOption
			if key != "" {
				applyOpts = append(applyOpts, ledger.WithIdempotencyKey(key))
			}

			snap, err := a.ledger.Apply(cmd.Context(), args[0], amount, direction, applyOpts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entry %s %s %s\n", snap.Entry.ID, snap.Entry.Direction, snap.Entry.Amount.StringFixed(ledger.Scale))
			if snap.Replayed {
				fmt.Fprintln(out, "replayed: idempotency key already committed")
			}
			fmt.Fprintf(out, "balance %s\n", snap.Balance.StringFixed(ledger.Scale))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "idempotency-key", "", "Apply at most once per account for this key")
	return cmd
}

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Print the committed balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			bal, err := a.ledger.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), bal.Balance.StringFixed(ledger.Scale))
			return nil
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <account-id>",
		Short: "List the ledger entries of an account, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.ledger.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED_AT\tID\tDIRECTION\tAMOUNT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.CreatedAt.Format("2006-01-02T15:04:05.000000Z07:00"), e.ID, e.Direction, e.Amount.StringFixed(ledger.Scale))
			}
			return w.Flush()
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <account-id>",
		Short: "Re-derive the balance from the ledger and compare it with the cached one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.ledger.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: balance %s matches %d entries\n", v.Cached.StringFixed(ledger.Scale), v.Entries)
			return nil
		},
	}
}
