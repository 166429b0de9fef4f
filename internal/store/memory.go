package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps all state in process memory behind a single mutex.
// Values are copied in and out so callers never alias stored records.
type MemoryStore struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	usersByEmail map[string]string
	sessions     map[string]string
	accounts     map[string]*domain.Account
	transactions []domain.Transaction
	transfers    map[string]*domain.Transfer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*domain.User),
		usersByEmail: make(map[string]string),
		sessions:     make(map[string]string),
		accounts:     make(map[string]*domain.Account),
		transfers:    make(map[string]*domain.Transfer),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *domain.User, accounts ...*domain.Account) error {
	return m.CreateCustomer(ctx, user, accounts, nil)
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, user *domain.User, accounts []*domain.Account, history []domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := emailKey(user.Email)
	if _, taken := m.usersByEmail[key]; taken {
		return ErrEmailTaken
	}

	u := *user
	m.users[u.ID] = &u
	m.usersByEmail[key] = u.ID
	for _, acc := range accounts {
		a := *acc
		m.accounts[a.ID] = &a
	}
	m.transactions = append(m.transactions, history...)
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.usersByEmail[emailKey(email)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *m.users[id]
	return &c, nil
}

// DeleteUser drops a user and its email index. Sessions are left dangling
// on purpose so they can be observed to stop authenticating.
func (m *MemoryStore) DeleteUser(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		delete(m.usersByEmail, emailKey(u.Email))
		delete(m.users, id)
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, token, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[token] = userID
	return nil
}

func (m *MemoryStore) SessionUser(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.sessions[token]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

// RemoveAccount deletes an account. Used to simulate closures in tests.
func (m *MemoryStore) RemoveAccount(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.accounts, id)
}

// SetBalance overwrites an account balance outside the transfer flow.
func (m *MemoryStore) SetBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Balance = balance
	return nil
}

func (m *MemoryStore) ListAccountsByOwner(ctx context.Context, userID string) ([]domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Account
	for _, a := range m.accounts {
		if a.OwnerUserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number < out[j].Number
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, accountIDs []string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		want[id] = struct{}{}
	}

	var out []domain.Transaction
	for _, tx := range m.transactions {
		if _, ok := want[tx.AccountID]; ok {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *MemoryStore) ImportTransactions(ctx context.Context, txs []domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions = append(m.transactions, txs...)
	return nil
}

func (m *MemoryStore) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transfers[t.ID] = t.Clone()
	return nil
}

func (m *MemoryStore) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *MemoryStore) UpdateTransfer(ctx context.Context, id string, fn func(t *domain.Transfer) error) (*domain.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}

	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	m.transfers[id] = working
	return working.Clone(), nil
}

func (m *MemoryStore) SettleTransfer(ctx context.Context, id string, fn SettleFunc) (*Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.transfers[id]
	if !ok {
		return nil, ErrNotFound
	}

	s := &Settlement{Transfer: stored.Clone()}
	if a, ok := m.accounts[stored.FromAccountID]; ok {
		c := *a
		s.From = &c
	}
	if a, ok := m.accounts[stored.ToAccountID]; ok && stored.ToAccountID != stored.FromAccountID {
		c := *a
		s.To = &c
	}

	lines, err := fn(s)
	if err != nil {
		return nil, err
	}

	// Nothing below can fail, so the writes land together.
	m.transfers[id] = s.Transfer.Clone()
	if s.From != nil {
		a := *s.From
		m.accounts[a.ID] = &a
	}
	if s.To != nil {
		a := *s.To
		m.accounts[a.ID] = &a
	}
	m.transactions = append(m.transactions, lines...)

	return s, nil
}

func (m *MemoryStore) Close() {}
