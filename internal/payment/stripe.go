// Package payment sells credit packs through Stripe Checkout.
package payment

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"github.com/stripe/stripe-go/v72/webhook"

	"jobpilot-edge/config"
)

// Metadata keys written on every checkout session.
const (
	MetaUserID  = "user_id"
	MetaCredits = "credits"
	MetaPack    = "pack"
)

// Pack is a purchasable bundle of credits.
type Pack struct {
	Key     string
	PriceID string
	Credits decimal.Decimal
}

type StripeClient struct {
	secretKey     string
	webhookSecret string
	successURL    string
	cancelURL     string
	packs         map[string]Pack
}

func NewStripeClient(cfg config.StripeConfig) (*StripeClient, error) {
	stripe.Key = cfg.SecretKey

	packs := make(map[string]Pack, len(cfg.Packs))
	for _, p := range cfg.Packs {
		credits, err := decimal.NewFromString(p.Credits)
		if err != nil || !credits.IsPositive() {
			return nil, fmt.Errorf("payment: pack %q has invalid credits %q", p.Key, p.Credits)
		}
		packs[p.Key] = Pack{Key: p.Key, PriceID: p.PriceID, Credits: credits}
	}

	return &StripeClient{
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookKey,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		packs:         packs,
	}, nil
}

func (s *StripeClient) Pack(key string) (Pack, bool) {
	p, ok := s.packs[key]
	return p, ok
}

// Packs returns the configured packs ordered by key.
func (s *StripeClient) Packs() []Pack {
	out := make([]Pack, 0, len(s.packs))
	for _, p := range s.packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// CreateCheckoutSession returns the session id and hosted URL for buying
// pack on behalf of userID.
func (s *StripeClient) CreateCheckoutSession(userID string, pack Pack) (string, string, error) {
	if stripe.Key != s.secretKey {
		stripe.Key = s.secretKey
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pack.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(userID),
	}
	params.AddMetadata(MetaUserID, userID)
	params.AddMetadata(MetaCredits, pack.Credits.String())
	params.AddMetadata(MetaPack, pack.Key)

	sess, err := session.New(params)
	if err != nil {
		return "", "", fmt.Errorf("payment: creating checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("payment: webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, s.webhookSecret)
}
