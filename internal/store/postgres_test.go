package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPostgresStore connects to DB_SOURCE and skips the test when it is unset.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DB_SOURCE")
	if dsn == "" {
		t.Skip("DB_SOURCE not set; skipping postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(s.Close)
	return s
}

// pgCustomer inserts a user owning one account per balance. Ids, emails and
// numbers are random so runs against a shared database do not collide.
func pgCustomer(t *testing.T, s *PostgresStore, balances ...string) (*domain.User, []*domain.Account) {
	t.Helper()
	now := time.Now().UTC()
	user := &domain.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Password: "hash", DisplayName: "pg", CreatedAt: now}

	var accounts []*domain.Account
	for _, b := range balances {
		accounts = append(accounts, &domain.Account{
			ID:           uuid.NewString(),
			OwnerUserID:  user.ID,
			DisplayName:  "Checking",
			Number:       uuid.NewString(),
			Balance:      decimal.RequireFromString(b),
			CurrencyCode: "USD",
			CreatedAt:    now,
		})
	}
	require.NoError(t, s.CreateUser(context.Background(), user, accounts...))
	return user, accounts
}

func pgTransfer(t *testing.T, s *PostgresStore, userID, from, to, amount string) *domain.Transfer {
	t.Helper()
	tr := &domain.Transfer{
		ID:               uuid.NewString(),
		InitiatingUserID: userID,
		FromAccountID:    from,
		ToAccountID:      to,
		Amount:           decimal.RequireFromString(amount),
		CurrencyCode:     "USD",
		Status:           domain.StatusVerified,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.CreateTransfer(context.Background(), tr))
	return tr
}

// move is the SettleFunc used below: a plain internal transfer, once.
func move(s *Settlement) ([]domain.Transaction, error) {
	if s.Transfer.Status != domain.StatusVerified {
		return nil, domain.ErrOTPRequired
	}
	s.From.Balance = s.From.Balance.Sub(s.Transfer.Amount)
	s.To.Balance = s.To.Balance.Add(s.Transfer.Amount)
	s.Transfer.Status = domain.StatusCompleted
	now := time.Now().UTC()
	s.Transfer.CompletedAt = &now
	return []domain.Transaction{
		{ID: uuid.NewString(), AccountID: s.From.ID, TransferID: s.Transfer.ID, Description: "out", SignedAmount: s.Transfer.Amount.Neg(), Timestamp: now},
		{ID: uuid.NewString(), AccountID: s.To.ID, TransferID: s.Transfer.ID, Description: "in", SignedAmount: s.Transfer.Amount, Timestamp: now},
	}, nil
}

func pgBalance(t *testing.T, s *PostgresStore, id string) decimal.Decimal {
	t.Helper()
	a, err := s.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func TestPostgresStore_CreateCustomer(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	user, accounts := pgCustomer(t, s, "0")
	dup := &domain.User{ID: uuid.NewString(), Email: strings.ToUpper(user.Email), Password: "x", DisplayName: "dup", CreatedAt: time.Now()}
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrEmailTaken)

	fresh := &domain.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", Password: "x", DisplayName: "h", CreatedAt: time.Now()}
	acc := &domain.Account{ID: uuid.NewString(), OwnerUserID: fresh.ID, DisplayName: "c", Number: uuid.NewString(), Balance: decimal.NewFromInt(7), CurrencyCode: "USD", CreatedAt: time.Now()}
	history := []domain.Transaction{{ID: uuid.NewString(), AccountID: acc.ID, Description: "Opening deposit", SignedAmount: decimal.NewFromInt(7), Timestamp: time.Now()}}
	require.NoError(t, s.CreateCustomer(ctx, fresh, []*domain.Account{acc}, history))

	txs, err := s.ListTransactions(ctx, []string{acc.ID, accounts[0].ID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].SignedAmount.Equal(decimal.NewFromInt(7)))
}

func TestPostgresStore_SettleRollsBackOnError(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	user, acc := pgCustomer(t, s, "100.00", "0")
	tr := pgTransfer(t, s, user.ID, acc[0].ID, acc[1].ID, "30.00")

	boom := errors.New("boom")
	_, err := s.SettleTransfer(ctx, tr.ID, func(st *Settlement) ([]domain.Transaction, error) {
		if _, err := move(st); err != nil {
			return nil, err
		}
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	assert.True(t, pgBalance(t, s, acc[0].ID).Equal(decimal.RequireFromString("100")))
	assert.True(t, pgBalance(t, s, acc[1].ID).IsZero())
	got, err := s.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, got.Status)
	txs, err := s.ListTransactions(ctx, []string{acc[0].ID, acc[1].ID})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestPostgresStore_SettleCommits(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	user, acc := pgCustomer(t, s, "100.00", "5.00")
	tr := pgTransfer(t, s, user.ID, acc[0].ID, acc[1].ID, "30.25")

	st, err := s.SettleTransfer(ctx, tr.ID, move)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, st.Transfer.Status)

	assert.True(t, pgBalance(t, s, acc[0].ID).Equal(decimal.RequireFromString("69.75")))
	assert.True(t, pgBalance(t, s, acc[1].ID).Equal(decimal.RequireFromString("35.25")))

	got, err := s.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	_, err = s.SettleTransfer(ctx, tr.ID, move)
	assert.ErrorIs(t, err, domain.ErrOTPRequired, "a settled transfer is read back as completed")

	_, err = s.SettleTransfer(ctx, uuid.NewString(), move)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_OpposingSettlementsDoNotDeadlock(t *testing.T) {
	s := newPostgresStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, acc := pgCustomer(t, s, "500.00", "500.00")
	var transfers []*domain.Transfer
	for i := 0; i < 20; i++ {
		from, to := acc[0].ID, acc[1].ID
		if i%2 == 1 {
			from, to = to, from
		}
		transfers = append(transfers, pgTransfer(t, s, user.ID, from, to, "1.00"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(transfers))
	for _, tr := range transfers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.SettleTransfer(ctx, id, move)
			errs <- err
		}(tr.ID)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	total := pgBalance(t, s, acc[0].ID).Add(pgBalance(t, s, acc[1].ID))
	assert.True(t, total.Equal(decimal.RequireFromString("1000")), total.String())
}

func TestPostgresStore_UpdateTransferPersistsOTP(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	user, acc := pgCustomer(t, s, "10")
	tr := pgTransfer(t, s, user.ID, acc[0].ID, "EXT-1", "1")

	_, err := s.UpdateTransfer(ctx, tr.ID, func(t *domain.Transfer) error {
		t.OTP = &domain.OTPChallenge{Code: "123456", AttemptCount: 2, SentAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute)}
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.UpdateTransfer(ctx, tr.ID, func(t *domain.Transfer) error {
		t.OTP.AttemptCount = 99
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, got.OTP)
	assert.Equal(t, "123456", got.OTP.Code)
	assert.Equal(t, 2, got.OTP.AttemptCount)
}
