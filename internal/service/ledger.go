package service

import (
	"context"
	"sort"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/store"
)

// LedgerService answers read-only questions about a user's money.
type LedgerService struct {
	store store.Store
}

func NewLedgerService(st store.Store) *LedgerService {
	return &LedgerService{store: st}
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	accounts, err := s.store.ListAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "account listing failed")
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	return accounts, nil
}

// ListTransactions returns the caller's statement lines, newest first.
// A non-empty accountID narrows the result to that account; one the caller
// does not own simply matches nothing.
func (s *LedgerService) ListTransactions(ctx context.Context, userID, accountID string) ([]domain.Transaction, error) {
	accounts, err := s.store.ListAccountsByOwner(ctx, userID)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "account listing failed")
	}

	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if accountID == "" || a.ID == accountID {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return []domain.Transaction{}, nil
	}

	txs, err := s.store.ListTransactions(ctx, ids)
	if err != nil {
		return nil, domain.Wrap(err, domain.CodeInternal, "transaction listing failed")
	}

	// Later appends win ties, so reverse before the stable sort.
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})

	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}
