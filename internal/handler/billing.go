package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v72"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/middleware"
	"jobpilot-edge/internal/models"
	"jobpilot-edge/internal/payment"
	"jobpilot-edge/pkg/logger"
)

const maxWebhookBody = 65536

type Checkout interface {
	Pack(key string) (payment.Pack, bool)
	CreateCheckoutSession(userID string, pack payment.Pack) (string, string, error)
	VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error)
}

// Accounts finds users by internal id or by identity-provider subject.
type Accounts interface {
	User(ctx context.Context, id string) (*models.User, error)
	UserByAuthID(ctx context.Context, authID string) (*models.User, error)
}

type BillingHandler struct {
	checkout Checkout
	granter  payment.Granter
	accounts Accounts
	logger   *logger.Logger
}

func NewBillingHandler(checkout Checkout, granter payment.Granter, accounts Accounts, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{checkout: checkout, granter: granter, accounts: accounts, logger: logger}
}

type checkoutRequest struct {
	UserID string `json:"user_id"`
	Pack   string `json:"pack"`
}

// Checkout starts a Stripe checkout for a credit pack. An authenticated
// subject takes precedence over user_id in the body. Either way the session
// carries the internal users.id that the webhook later credits.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDeductBody)).Decode(&req); err != nil {
		WriteError(w, apperror.InvalidBody(err))
		return
	}

	user, err := h.account(r.Context(), strings.TrimSpace(req.UserID))
	if err != nil {
		WriteError(w, err)
		return
	}

	pack, ok := h.checkout.Pack(req.Pack)
	if !ok {
		WriteError(w, apperror.Validation(apperror.CodeInvalidBody, "unknown credit pack "+req.Pack))
		return
	}

	id, url, err := h.checkout.CreateCheckoutSession(user.ID, pack)
	if err != nil {
		h.logger.Error("Failed to create checkout session", "user_id", user.ID, "pack", pack.Key, "error", err)
		WriteError(w, apperror.Upstream("payment provider unavailable", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"session_id": id,
		"url":        url,
		"user_id":    user.ID,
		"credits":    number(pack.Credits),
	})
}

// account resolves the buyer: the token subject through users.auth_id, or
// the body user_id through users.id.
func (h *BillingHandler) account(ctx context.Context, bodyUserID string) (*models.User, error) {
	lookup, key := h.accounts.User, bodyUserID
	if subject, ok := middleware.SubjectFromContext(ctx); ok {
		lookup, key = h.accounts.UserByAuthID, subject
	}
	if key == "" {
		return nil, apperror.MissingParameter("user_id")
	}

	user, err := lookup(ctx, key)
	if err != nil {
		if errors.Is(err, identity.ErrNoRows) {
			return nil, apperror.UserNotFound(key)
		}
		return nil, apperror.Internal(fmt.Errorf("billing: looking up user %s: %w", key, err))
	}
	return user, nil
}

// StripeWebhook verifies the event and grants credits for completed
// checkouts. Non-2xx responses make Stripe retry.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		WriteError(w, apperror.InvalidBody(err))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		WriteError(w, apperror.MissingParameter("Stripe-Signature"))
		return
	}

	event, err := h.checkout.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("Failed to verify webhook signature", "error", err)
		WriteError(w, apperror.Validation(apperror.CodeInvalidBody, "invalid signature"))
		return
	}

	purchase, err := payment.PurchaseFromEvent(event)
	if errors.Is(err, payment.ErrIgnoredEvent) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
		return
	}
	if err != nil {
		h.logger.Error("Unusable checkout event", "event_id", event.ID, "error", err)
		WriteError(w, apperror.Validation(apperror.CodeInvalidBody, err.Error()))
		return
	}

	granted, err := payment.Fulfill(r.Context(), h.granter, purchase)
	if err != nil {
		h.logger.Error("Failed to grant purchased credits", "session_id", purchase.SessionID, "user_id", purchase.UserID, "error", err)
		WriteError(w, apperror.Internal(err))
		return
	}
	if !granted {
		h.logger.Info("Checkout session already fulfilled", "session_id", purchase.SessionID, "event_id", event.ID)
		writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "duplicate": true})
		return
	}

	h.logger.Info("Credits purchased",
		"session_id", purchase.SessionID,
		"user_id", purchase.UserID,
		"credits", purchase.Credits.String(),
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true, "granted": number(purchase.Credits)})
}
