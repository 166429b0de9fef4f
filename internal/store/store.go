package store

import (
	"context"
	"errors"

	"github.com/punchamoorthee/mockbank/internal/domain"
)

var (
	ErrNotFound   = errors.New("store: record not found")
	ErrEmailTaken = errors.New("store: email already registered")
)

// Settlement is the locked working set handed to a SettleFunc. To is nil
// when the destination is not an account held in this ledger; From is nil
// when the source account has disappeared.
type Settlement struct {
	Transfer *domain.Transfer
	From     *domain.Account
	To       *domain.Account
}

// SettleFunc validates and mutates a Settlement in place and returns the
// statement lines to append. Returning an error discards every change.
type SettleFunc func(s *Settlement) ([]domain.Transaction, error)

// Store is the persistence boundary. Every method is safe for concurrent use
// and every mutation is atomic.
type Store interface {
	// CreateUser inserts a user together with its opening accounts, or
	// nothing at all. It fails with ErrEmailTaken on a duplicate email.
	CreateUser(ctx context.Context, user *domain.User, accounts ...*domain.Account) error
	// CreateCustomer is CreateUser plus pre-existing statement lines on
	// those accounts, all committed together.
	CreateCustomer(ctx context.Context, user *domain.User, accounts []*domain.Account, history []domain.Transaction) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	CreateSession(ctx context.Context, token, userID string) error
	// SessionUser resolves a token to the user id it was issued for.
	SessionUser(ctx context.Context, token string) (string, error)

	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccountsByOwner(ctx context.Context, userID string) ([]domain.Account, error)

	// ListTransactions returns every statement line on the given accounts,
	// in no particular order.
	ListTransactions(ctx context.Context, accountIDs []string) ([]domain.Transaction, error)
	// ImportTransactions appends historical lines without touching balances.
	ImportTransactions(ctx context.Context, txs []domain.Transaction) error

	CreateTransfer(ctx context.Context, t *domain.Transfer) error
	GetTransfer(ctx context.Context, id string) (*domain.Transfer, error)
	// UpdateTransfer runs fn on the locked transfer and persists the result
	// unless fn returns an error.
	UpdateTransfer(ctx context.Context, id string, fn func(t *domain.Transfer) error) (*domain.Transfer, error)
	// SettleTransfer locks the transfer and both accounts, runs fn, and
	// commits the transfer, balances and statement lines as one unit.
	SettleTransfer(ctx context.Context, id string, fn SettleFunc) (*Settlement, error)

	Close()
}
