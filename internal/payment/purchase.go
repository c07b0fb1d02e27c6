package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
)

// FeaturePurchase tags ledger rows created by a completed checkout.
const FeaturePurchase = "purchase"

// ErrIgnoredEvent is returned for events that grant nothing.
var ErrIgnoredEvent = errors.New("payment: event does not grant credits")

// Granter adds credits to a user's balance. Grant reports false when
// reference was already granted for feature.
type Granter interface {
	Grant(ctx context.Context, userID string, amount decimal.Decimal, feature, reference, description string) (bool, error)
}

type Purchase struct {
	SessionID string
	UserID    string
	Pack      string
	Credits   decimal.Decimal
}

// PurchaseFromEvent extracts a paid credit purchase from a webhook event.
func PurchaseFromEvent(event stripe.Event) (*Purchase, error) {
	if event.Type != "checkout.session.completed" {
		return nil, ErrIgnoredEvent
	}
	if event.Data == nil {
		return nil, errors.New("payment: event has no data")
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("payment: parsing checkout session: %w", err)
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return nil, ErrIgnoredEvent
	}
	if sess.ID == "" {
		return nil, errors.New("payment: checkout session has no id")
	}

	userID := sess.Metadata[MetaUserID]
	if userID == "" {
		userID = sess.ClientReferenceID
	}
	if userID == "" {
		return nil, fmt.Errorf("payment: session %s has no user id", sess.ID)
	}

	credits, err := decimal.NewFromString(sess.Metadata[MetaCredits])
	if err != nil || !credits.IsPositive() {
		return nil, fmt.Errorf("payment: session %s has invalid credits %q", sess.ID, sess.Metadata[MetaCredits])
	}

	return &Purchase{
		SessionID: sess.ID,
		UserID:    userID,
		Pack:      sess.Metadata[MetaPack],
		Credits:   credits,
	}, nil
}

// Fulfill grants the purchased credits once per checkout session. It returns
// false for a session that was already fulfilled.
func Fulfill(ctx context.Context, g Granter, p *Purchase) (bool, error) {
	if p.SessionID == "" {
		return false, errors.New("payment: purchase has no session id")
	}
	desc := fmt.Sprintf("Purchased %s credits (%s)", p.Credits.String(), p.SessionID)
	if p.Pack != "" {
		desc = fmt.Sprintf("Purchased %s pack: %s credits (%s)", p.Pack, p.Credits.String(), p.SessionID)
	}
	granted, err := g.Grant(ctx, p.UserID, p.Credits, FeaturePurchase, p.SessionID, desc)
	if err != nil {
		return false, fmt.Errorf("payment: granting credits for %s: %w", p.SessionID, err)
	}
	return granted, nil
}
