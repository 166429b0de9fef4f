package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered customer. Password holds a bcrypt hash.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Password    string    `json:"-"`
	DisplayName string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary is the public view of a user returned by the auth endpoints.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Name: u.DisplayName}
}

type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Account represents a user's balance in the ledger.
type Account struct {
	ID           string          `json:"id"`
	OwnerUserID  string          `json:"owner_user_id"`
	DisplayName  string          `json:"display_name"`
	Number       string          `json:"number"`
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transaction is one append-only line on an account statement.
// Debits carry a negative SignedAmount.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	TransferID   string          `json:"transfer_id,omitempty"`
	Description  string          `json:"description"`
	SignedAmount decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

type TransferStatus string

const (
	StatusPendingOTP TransferStatus = "PENDING_OTP"
	StatusVerified   TransferStatus = "VERIFIED"
	StatusCompleted  TransferStatus = "COMPLETED"
)

// OTPChallenge is the second factor attached to a transfer. It is replaced
// wholesale every time a code is sent.
type OTPChallenge struct {
	Code         string    `json:"-"`
	AttemptCount int       `json:"attempt_count"`
	SentAt       time.Time `json:"sent_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the challenge can no longer be used at now.
// A code is dead from ExpiresAt onwards, inclusive.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Transfer represents the intent to move money and tracks its progress
// through PENDING_OTP -> VERIFIED -> COMPLETED.
type Transfer struct {
	ID               string          `json:"id"`
	InitiatingUserID string          `json:"initiating_user_id"`
	FromAccountID    string          `json:"from_account_id"`
	ToAccountID      string          `json:"to_account_id"`
	Amount           decimal.Decimal `json:"amount"`
	CurrencyCode     string          `json:"currency"`
	Status           TransferStatus  `json:"status"`
	OTP              *OTPChallenge   `json:"otp,omitempty"`
	Note             string          `json:"note,omitempty"`
	Reference        string          `json:"reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t *Transfer) Clone() *Transfer {
	c := *t
	if t.OTP != nil {
		otp := *t.OTP
		c.OTP = &otp
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// Receipt is handed back when a transfer completes.
type Receipt struct {
	Reference          string          `json:"reference"`
	FromAccountID      string          `json:"from_account_id"`
	ToAccountID        string          `json:"to_account_id"`
	Amount             decimal.Decimal `json:"amount"`
	CurrencyCode       string          `json:"currency"`
	Note               string          `json:"note,omitempty"`
	SourceBalanceAfter decimal.Decimal `json:"source_balance_after"`
	Internal           bool            `json:"internal"`
	CompletedAt        time.Time       `json:"completed_at"`
}
