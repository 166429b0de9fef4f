// Package events publishes domain events to interested consumers.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoutingUserRegistered    = "user.registered"
	RoutingTransferCompleted = "transfer.completed"
)

// Publisher delivers an event body under a routing key. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

type UserRegistered struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	AccountID  string    `json:"account_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TransferCompleted struct {
	TransferID    string          `json:"transfer_id"`
	Reference     string          `json:"reference"`
	UserID        string          `json:"user_id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"currency"`
	Internal      bool            `json:"internal"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	return nil
}

func (NopPublisher) Close() {}
