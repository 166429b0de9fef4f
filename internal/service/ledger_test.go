package service

import (
	"context"
	"testing"
	"time"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAccounts_OnlyOwn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	alice, aliceAcc := h.customer(t, "alice@example.com", "10")
	_, _ = h.customer(t, "bob@example.com", "20")

	accounts, err := h.ledger.ListAccounts(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, aliceAcc.ID, accounts[0].ID)

	none, err := h.ledger.ListAccounts(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListTransactions_NewestFirstAndScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	alice, checking := h.customer(t, "alice@example.com", "0")
	savings := &domain.Account{ID: "alice-savings", OwnerUserID: alice.ID, Number: "9999999999", CurrencyCode: "USD", CreatedAt: base}
	require.NoError(t, h.store.CreateUser(ctx, &domain.User{ID: "placeholder", Email: "placeholder@example.com"}, savings))
	_, bobAcc := h.customer(t, "bob@example.com", "0")

	require.NoError(t, h.store.ImportTransactions(ctx, []domain.Transaction{
		{ID: "t1", AccountID: checking.ID, Description: "oldest", SignedAmount: decimal.NewFromInt(5), Timestamp: base},
		{ID: "t2", AccountID: savings.ID, Description: "middle", SignedAmount: decimal.NewFromInt(6), Timestamp: base.Add(time.Hour)},
		{ID: "t3", AccountID: checking.ID, Description: "newest", SignedAmount: decimal.NewFromInt(-1), Timestamp: base.Add(2 * time.Hour)},
		{ID: "t4", AccountID: bobAcc.ID, Description: "bob's", SignedAmount: decimal.NewFromInt(9), Timestamp: base.Add(3 * time.Hour)},
		{ID: "t5", AccountID: checking.ID, Description: "tie-later", SignedAmount: decimal.NewFromInt(1), Timestamp: base.Add(2 * time.Hour)},
	}))

	all, err := h.ledger.ListTransactions(ctx, alice.ID, "")
	require.NoError(t, err)
	var ids []string
	for _, tx := range all {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"t5", "t3", "t2", "t1"}, ids)

	onlyChecking, err := h.ledger.ListTransactions(ctx, alice.ID, checking.ID)
	require.NoError(t, err)
	require.Len(t, onlyChecking, 3)
	for _, tx := range onlyChecking {
		assert.Equal(t, checking.ID, tx.AccountID)
	}

	foreign, err := h.ledger.ListTransactions(ctx, alice.ID, bobAcc.ID)
	require.NoError(t, err)
	assert.NotNil(t, foreign)
	assert.Empty(t, foreign, "another user's account must not leak")
}
