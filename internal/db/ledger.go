package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/shopspring/decimal"

	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/models"
)

var _ credits.Ledger = (*PostgresDB)(nil)

func (db *PostgresDB) Credits(ctx context.Context, userID string) (*models.UserCredits, error) {
	// numeric columns are read as text to keep them exact
	query := `
        SELECT user_id::text, current_balance::text, paid_credits::text, ai_interview_credits::text,
               COALESCE(subscription_plan, ''), updated_at
        FROM user_credits
        WHERE user_id = $1
    `

	var (
		c                             models.UserCredits
		balance, paid, interviewCreds string
	)
	err := db.pool.QueryRow(ctx, query, userID).Scan(
		&c.UserID, &balance, &paid, &interviewCreds, &c.SubscriptionPlan, &c.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrNoCredits
		}
		return nil, fmt.Errorf("failed to get user credits: %w", err)
	}

	if c.CurrentBalance, err = numeric("current_balance", balance); err != nil {
		return nil, err
	}
	if c.PaidCredits, err = numeric("paid_credits", paid); err != nil {
		return nil, err
	}
	if c.AIInterviewCredits, err = numeric("ai_interview_credits", interviewCreds); err != nil {
		return nil, err
	}

	return &c, nil
}

// numeric parses a NUMERIC column read as ::text.
func numeric(column, text string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", column, text, err)
	}
	return d, nil
}

// Deduct calls deduct_credits. false means the procedure refused.
func (db *PostgresDB) Deduct(ctx context.Context, userID string, amount decimal.Decimal, feature, description string) (bool, error) {
	var ok bool
	err := db.pool.QueryRow(ctx,
		`SELECT deduct_credits($1, $2::numeric, $3, $4)`,
		userID, amount.String(), feature, description,
	).Scan(&ok)
	if err != nil {
		if isRefusal(err) {
			return false, nil
		}
		return false, fmt.Errorf("deduct_credits rpc: %w", err)
	}
	return ok, nil
}

func (db *PostgresDB) UseInterviewCredit(ctx context.Context, userID, description string) (bool, error) {
	var ok bool
	err := db.pool.QueryRow(ctx,
		`SELECT use_ai_interview_credit($1, $2)`,
		userID, description,
	).Scan(&ok)
	if err != nil {
		if isRefusal(err) {
			return false, nil
		}
		return false, fmt.Errorf("use_ai_interview_credit rpc: %w", err)
	}
	return ok, nil
}

// Grant adds purchased or promotional credits through add_credits. It
// returns false when reference was already granted for feature. An empty
// reference always grants.
func (db *PostgresDB) Grant(ctx context.Context, userID string, amount decimal.Decimal, feature, reference, description string) (bool, error) {
	if !amount.IsPositive() {
		return false, fmt.Errorf("grant amount must be positive, got %s", amount)
	}
	var granted bool
	err := db.pool.QueryRow(ctx,
		`SELECT add_credits($1, $2::numeric, $3, NULLIF($4, ''), $5)`,
		userID, amount.String(), feature, reference, description,
	).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("add_credits rpc: %w", err)
	}
	return granted, nil
}

// Transactions returns the most recent ledger rows for a user, newest first.
func (db *PostgresDB) Transactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
        SELECT id::text, user_id::text, pool, amount::text, feature_used,
               COALESCE(reference, ''), COALESCE(description, ''), created_at
        FROM credit_transactions
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `

	rows, err := db.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	defer rows.Close()

	var out []models.CreditTransaction
	for rows.Next() {
		var (
			tx     models.CreditTransaction
			amount string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Pool, &amount, &tx.FeatureUsed, &tx.Reference, &tx.Description, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning credit transaction: %w", err)
		}
		if tx.Amount, err = numeric("amount", amount); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// isRefusal matches the insufficient-funds exception some ledger versions
// raise instead of returning false.
func isRefusal(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "P0001" && pgErr.Hint == "insufficient_credits"
}
