package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/logging"
	"github.com/punchamoorthee/mockbank/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testCode = "424242"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type published struct {
	key  string
	body interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{key: routingKey, body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

type harness struct {
	store     *store.MemoryStore
	clock     *fakeClock
	events    *recordingPublisher
	auth      *AuthService
	ledger    *LedgerService
	transfers *TransferService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  store.NewMemoryStore(),
		clock:  &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)},
		events: &recordingPublisher{},
	}
	logger := logging.NewNoOpLogger()
	h.auth = NewAuthService(h.store, h.events, logger, AuthConfig{
		Currency: "USD",
		HashCost: bcrypt.MinCost,
		Now:      h.clock.Now,
	})
	h.ledger = NewLedgerService(h.store)
	h.transfers = NewTransferService(h.store, h.events, logger, TransferConfig{
		Now:     h.clock.Now,
		NewCode: func() (string, error) { return testCode, nil },
	})
	return h
}

// customer registers a user and funds their default account.
func (h *harness) customer(t *testing.T, email string, balance string) (*domain.User, *domain.Account) {
	t.Helper()
	ctx := context.Background()

	sess, err := h.auth.Register(ctx, email, "hunter2", "")
	require.NoError(t, err)

	accounts, err := h.store.ListAccountsByOwner(ctx, sess.User.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, h.store.SetBalance(ctx, accounts[0].ID, decimal.RequireFromString(balance)))
	acc, err := h.store.GetAccount(ctx, accounts[0].ID)
	require.NoError(t, err)
	return sess.User, acc
}

func (h *harness) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	acc, err := h.store.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance
}

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func requireCode(t *testing.T, want domain.ErrorCode, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, domain.CodeOf(err), "unexpected error: %v", err)
}
