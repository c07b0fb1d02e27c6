// internal/models/models.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the identity-provider-linked account that owns the credit balance.
type User struct {
	ID          string    `json:"id"`
	AuthID      string    `json:"auth_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserProfile is the product-side extension of a User. Feature tables point
// at a profile id, never at a User id.
type UserProfile struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Bio            string    `json:"bio,omitempty"`
	ResumeURL      string    `json:"resume_url,omitempty"`
	BotActivated   bool      `json:"bot_activated"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FeatureRecord is one AI-generation request row. UserID holds a profile id.
type FeatureRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name,omitempty"`
	JobTitle    string    `json:"job_title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserCredits is the balance row for a User.
type UserCredits struct {
	UserID             string          `json:"user_id"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	PaidCredits        decimal.Decimal `json:"paid_credits"`
	AIInterviewCredits decimal.Decimal `json:"ai_interview_credits"`
	SubscriptionPlan   string          `json:"subscription_plan"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CreditTransaction is an append-only ledger row. Amount is negative for
// deductions and positive for grants.
type CreditTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Pool        string          `json:"pool"`
	FeatureUsed string          `json:"feature_used"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
