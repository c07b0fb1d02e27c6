// Package credits charges fixed feature prices against a user's balance.
//
// The balance check here is a fast-fail only. The ledger procedure re-checks
// and decrements atomically, and is the only writer of the balance.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/models"
	"jobpilot-edge/pkg/logger"
)

// ErrNoCredits is returned by a Ledger when the user has no credits row.
var ErrNoCredits = errors.New("credits: no credits row")

// Ledger is the credit store. Deduct and UseInterviewCredit are atomic
// check-and-decrement calls that return false when funds are insufficient.
type Ledger interface {
	Credits(ctx context.Context, userID string) (*models.UserCredits, error)
	Deduct(ctx context.Context, userID string, amount decimal.Decimal, feature, description string) (bool, error)
	UseInterviewCredit(ctx context.Context, userID, description string) (bool, error)
}

// Resolver maps a request identifier to its owning user.
type Resolver interface {
	Resolve(ctx context.Context, lookup identity.Lookup, id string) (*identity.Owner, error)
}

// Notifier is told about successful charges. Failures are logged only.
type Notifier interface {
	NotifyCharge(ctx context.Context, owner *identity.Owner, result *Result) error
}

type Request struct {
	ID          string
	Description string
}

// Result is what a successful charge reports back.
type Result struct {
	Feature         string          `json:"feature"`
	RecordID        string          `json:"record_id,omitempty"`
	ProfileID       string          `json:"user_profile_id"`
	UserID          string          `json:"user_id"`
	Pool            Pool            `json:"pool"`
	Deducted        decimal.Decimal `json:"credits_deducted"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	CompanyName     string          `json:"company_name,omitempty"`
	JobTitle        string          `json:"job_title,omitempty"`
	Description     string          `json:"description"`
}

type Charger struct {
	resolver Resolver
	ledger   Ledger
	notifier Notifier
	logger   *logger.Logger
}

func NewCharger(resolver Resolver, ledger Ledger, logger *logger.Logger) *Charger {
	return &Charger{resolver: resolver, ledger: ledger, logger: logger}
}

// WithNotifier attaches a notifier for Telegram-origin features.
func (c *Charger) WithNotifier(n Notifier) *Charger {
	c.notifier = n
	return c
}

// Charge runs resolve -> check -> deduct for one feature request. There is
// no dedup key: charging the same record twice deducts twice.
func (c *Charger) Charge(ctx context.Context, f Feature, req Request) (*Result, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, apperror.MissingParameter(f.IDField)
	}

	owner, err := c.resolver.Resolve(ctx, f.Lookup, id)
	if err != nil {
		return nil, err
	}

	before, err := c.credits(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}

	balance := poolBalance(before, f.Pool)
	if balance.LessThan(f.Price) {
		return nil, apperror.InsufficientCredits(balance, f.Price)
	}

	desc := describe(f, owner, req.Description)

	ok, err := c.deduct(ctx, f, owner.UserID, desc)
	if err != nil {
		return nil, apperror.DeductionFailed(err)
	}
	if !ok {
		// Lost a race with a concurrent charge; report the current balance.
		current := balance
		if after, rerr := c.ledger.Credits(ctx, owner.UserID); rerr == nil {
			current = poolBalance(after, f.Pool)
		}
		return nil, apperror.InsufficientCredits(current, f.Price)
	}

	newBalance := balance.Sub(f.Price)
	if after, err := c.ledger.Credits(ctx, owner.UserID); err == nil {
		newBalance = poolBalance(after, f.Pool)
	} else {
		c.logger.Warn("could not re-read balance after deduction", "user_id", owner.UserID, "error", err)
	}

	result := &Result{
		Feature:         f.Tag,
		ProfileID:       owner.Profile.ID,
		UserID:          owner.UserID,
		Pool:            f.Pool,
		Deducted:        f.Price,
		PreviousBalance: balance,
		NewBalance:      newBalance,
		Description:     desc,
	}
	if owner.Record != nil {
		result.RecordID = owner.Record.ID
		result.CompanyName = owner.Record.CompanyName
		result.JobTitle = owner.Record.JobTitle
	}

	c.logger.Info("credits deducted",
		"feature", f.Tag,
		"user_id", owner.UserID,
		"record_id", result.RecordID,
		"amount", f.Price.String(),
		"new_balance", newBalance.String(),
	)

	if f.Telegram && c.notifier != nil {
		if err := c.notifier.NotifyCharge(ctx, owner, result); err != nil {
			c.logger.Warn("charge notification failed", "user_id", owner.UserID, "error", err)
		}
	}

	return result, nil
}

func (c *Charger) credits(ctx context.Context, userID string) (*models.UserCredits, error) {
	row, err := c.ledger.Credits(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoCredits) {
			return nil, apperror.CreditsRecordNotFound(userID)
		}
		return nil, apperror.Internal(fmt.Errorf("credits: reading balance for %s: %w", userID, err))
	}
	return row, nil
}

func (c *Charger) deduct(ctx context.Context, f Feature, userID, desc string) (bool, error) {
	switch f.Pool {
	case PoolAIInterview:
		return c.ledger.UseInterviewCredit(ctx, userID, desc)
	default:
		return c.ledger.Deduct(ctx, userID, f.Price, f.Tag, desc)
	}
}

func poolBalance(row *models.UserCredits, pool Pool) decimal.Decimal {
	if pool == PoolAIInterview {
		return row.AIInterviewCredits
	}
	return row.CurrentBalance
}

func describe(f Feature, owner *identity.Owner, given string) string {
	if d := strings.TrimSpace(given); d != "" {
		return d
	}
	if r := owner.Record; r != nil {
		switch {
		case r.JobTitle != "" && r.CompanyName != "":
			return fmt.Sprintf("%s: %s at %s", f.Description, r.JobTitle, r.CompanyName)
		case r.CompanyName != "":
			return fmt.Sprintf("%s: %s", f.Description, r.CompanyName)
		}
	}
	return f.Description
}
