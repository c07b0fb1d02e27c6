package main

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"jobpilot-edge/config"
	"jobpilot-edge/internal/db"
	"jobpilot-edge/internal/models"
)

// FeatureAdminGrant tags credits granted by an operator.
const FeatureAdminGrant = "admin_grant"

func openDB(ctx context.Context) (*db.PostgresDB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.Connect(ctx, cfg.DB, 1, nil)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema and ledger procedures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			return database.Migrate(cmd.Context(), func(name string) {
				fmt.Fprintf(out, "applied %s\n", name)
			})
		},
	}
}

func balanceCmd() *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "balance <user_id>",
		Short: "Show a user's balances and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			row, err := database.Credits(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("reading balance: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:          %s\n", row.UserID)
			fmt.Fprintf(out, "balance:       %s\n", row.CurrentBalance.String())
			fmt.Fprintf(out, "paid credits:  %s\n", row.PaidCredits.String())
			fmt.Fprintf(out, "ai interviews: %s\n", row.AIInterviewCredits.String())

			if history <= 0 {
				return nil
			}
			txs, err := database.Transactions(cmd.Context(), args[0], history)
			if err != nil {
				return fmt.Errorf("reading transactions: %w", err)
			}
			printTransactions(out, txs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&history, "history", "n", 10, "number of transactions to show (0 for none)")
	return cmd
}

func grantCmd() *cobra.Command {
	var reason, reference string

	cmd := &cobra.Command{
		Use:   "grant <user_id> <amount>",
		Short: "Add credits to a user's balance",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return err
			}
			_, err := parseAmount(args[1])
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, _ := parseAmount(args[1])

			database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			granted, err := database.Grant(cmd.Context(), args[0], amount, FeatureAdminGrant, reference, reason)
			if err != nil {
				return fmt.Errorf("granting credits: %w", err)
			}
			if !granted {
				fmt.Fprintf(cmd.OutOrStdout(), "reference %s was already granted, nothing changed\n", reference)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s credits to %s\n", amount.String(), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "Granted by operator", "ledger description")
	cmd.Flags().StringVar(&reference, "reference", "", "grant at most once per reference (e.g. a support ticket id)")
	return cmd
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", s)
	}
	return amount, nil
}

func printTransactions(out io.Writer, txs []models.CreditTransaction) {
	if len(txs) == 0 {
		fmt.Fprintln(out, "\nno transactions")
		return
	}
	fmt.Fprintln(out, "\nrecent transactions:")
	for _, tx := range txs {
		fmt.Fprintf(out, "  %s  %-12s %8s  %-22s %s\n",
			tx.CreatedAt.Format("2006-01-02 15:04"), tx.Pool, tx.Amount.String(), tx.FeatureUsed, tx.Description)
	}
}
