package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/mockbank/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email));

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	owner_user_id TEXT NOT NULL REFERENCES users (id),
	display_name  TEXT NOT NULL,
	number        TEXT NOT NULL UNIQUE,
	balance       NUMERIC(20, 2) NOT NULL DEFAULT 0,
	currency_code CHAR(3) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS accounts_owner_idx ON accounts (owner_user_id);

CREATE TABLE IF NOT EXISTS transfers (
	id                 TEXT PRIMARY KEY,
	initiating_user_id TEXT NOT NULL,
	from_account_id    TEXT NOT NULL,
	to_account_id      TEXT NOT NULL,
	amount             NUMERIC(20, 2) NOT NULL,
	currency_code      CHAR(3) NOT NULL,
	status             TEXT NOT NULL,
	otp_code           TEXT,
	otp_attempts       INTEGER,
	otp_sent_at        TIMESTAMPTZ,
	otp_expires_at     TIMESTAMPTZ,
	note               TEXT NOT NULL DEFAULT '',
	reference          TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	transfer_id   TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL,
	signed_amount NUMERIC(20, 2) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_id, created_at DESC);
`

const transferColumns = `id, initiating_user_id, from_account_id, to_account_id, amount, currency_code, status,
	otp_code, otp_attempts, otp_sent_at, otp_expires_at, note, reference, created_at, completed_at`

const accountColumns = `id, owner_user_id, display_name, number, balance, currency_code, created_at`

// PostgresStore is the pgx-backed Store. Mutations run in a transaction and
// take row locks in a fixed order.
type PostgresStore struct {
	Db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{Db: pool}, nil
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *domain.User, accounts ...*domain.Account) error {
	return s.CreateCustomer(ctx, user, accounts, nil)
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, user *domain.User, accounts []*domain.Account, history []domain.Transaction) error {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO users (id, email, password_hash, display_name, created_at) VALUES ($1, $2, $3, $4, $5)",
		user.ID, user.Email, user.Password, user.DisplayName, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("user insert failed: %w", err)
	}

	for _, a := range accounts {
		_, err = tx.Exec(ctx,
			"INSERT INTO accounts ("+accountColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
			a.ID, a.OwnerUserID, a.DisplayName, a.Number, a.Balance, a.CurrencyCode, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("account insert failed: %w", err)
		}
	}

	if len(history) > 0 {
		if _, err = tx.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, transactionRows(history)); err != nil {
			return fmt.Errorf("history import failed: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.scanUser(s.Db.QueryRow(ctx,
		"SELECT id, email, password_hash, display_name, created_at FROM users WHERE id = $1", id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.scanUser(s.Db.QueryRow(ctx,
		"SELECT id, email, password_hash, display_name, created_at FROM users WHERE lower(email) = lower($1)", email))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.DisplayName, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("user query failed: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, token, userID string) error {
	_, err := s.Db.Exec(ctx, "INSERT INTO sessions (token, user_id) VALUES ($1, $2)", token, userID)
	if err != nil {
		return fmt.Errorf("session insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionUser(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.Db.QueryRow(ctx, "SELECT user_id FROM sessions WHERE token = $1", token).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("session query failed: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.OwnerUserID, &a.DisplayName, &a.Number, &a.Balance, &a.CurrencyCode, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account query failed: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAccountsByOwner(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE owner_user_id = $1 ORDER BY created_at, number", userID)
	if err != nil {
		return nil, fmt.Errorf("account list failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTransactions(ctx context.Context, accountIDs []string) ([]domain.Transaction, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	rows, err := s.Db.Query(ctx,
		"SELECT id, account_id, transfer_id, description, signed_amount, created_at FROM transactions WHERE account_id = ANY($1)",
		accountIDs)
	if err != nil {
		return nil, fmt.Errorf("transaction list failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.TransferID, &t.Description, &t.SignedAmount, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("transaction scan failed: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var transactionColumns = []string{"id", "account_id", "transfer_id", "description", "signed_amount", "created_at"}

func transactionRows(txs []domain.Transaction) pgx.CopyFromSource {
	rows := make([][]interface{}, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, []interface{}{t.ID, t.AccountID, t.TransferID, t.Description, t.SignedAmount, t.Timestamp})
	}
	return pgx.CopyFromRows(rows)
}

func (s *PostgresStore) ImportTransactions(ctx context.Context, txs []domain.Transaction) error {
	if _, err := s.Db.CopyFrom(ctx, pgx.Identifier{"transactions"}, transactionColumns, transactionRows(txs)); err != nil {
		return fmt.Errorf("transaction import failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTransfer(ctx context.Context, t *domain.Transfer) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO transfers ("+transferColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)",
		transferArgs(t)...,
	)
	if err != nil {
		return fmt.Errorf("transfer insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	return scanTransfer(s.Db.QueryRow(ctx, "SELECT "+transferColumns+" FROM transfers WHERE id = $1", id))
}

func (s *PostgresStore) UpdateTransfer(ctx context.Context, id string, fn func(t *domain.Transfer) error) (*domain.Transfer, error) {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := scanTransfer(tx.QueryRow(ctx, "SELECT "+transferColumns+" FROM transfers WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := writeTransfer(ctx, tx, t); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) SettleTransfer(ctx context.Context, id string, fn SettleFunc) (*Settlement, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := scanTransfer(tx.QueryRow(ctx, "SELECT "+transferColumns+" FROM transfers WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, err
	}

	// Deterministic locking: account rows are always taken in id order.
	ids := []string{t.FromAccountID}
	if t.ToAccountID != t.FromAccountID {
		ids = append(ids, t.ToAccountID)
	}
	sort.Strings(ids)

	locked := make(map[string]*domain.Account, len(ids))
	for _, accID := range ids {
		a, err := scanAccount(tx.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", accID))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
		locked[accID] = a
	}

	st := &Settlement{Transfer: t, From: locked[t.FromAccountID]}
	if t.ToAccountID != t.FromAccountID {
		st.To = locked[t.ToAccountID]
	}

	lines, err := fn(st)
	if err != nil {
		return nil, err
	}

	for _, a := range []*domain.Account{st.From, st.To} {
		if a == nil {
			continue
		}
		if _, err := tx.Exec(ctx, "UPDATE accounts SET balance = $1 WHERE id = $2", a.Balance, a.ID); err != nil {
			return nil, fmt.Errorf("balance update failed: %w", err)
		}
	}
	for _, l := range lines {
		_, err := tx.Exec(ctx,
			"INSERT INTO transactions (id, account_id, transfer_id, description, signed_amount, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			l.ID, l.AccountID, l.TransferID, l.Description, l.SignedAmount, l.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("ledger entry failed: %w", err)
		}
	}
	if err := writeTransfer(ctx, tx, st.Transfer); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return st, nil
}

func writeTransfer(ctx context.Context, tx pgx.Tx, t *domain.Transfer) error {
	args := transferArgs(t)
	_, err := tx.Exec(ctx,
		`UPDATE transfers SET status = $2, otp_code = $3, otp_attempts = $4, otp_sent_at = $5, otp_expires_at = $6,
			note = $7, reference = $8, completed_at = $9
		WHERE id = $1`,
		t.ID, args[6], args[7], args[8], args[9], args[10], t.Note, t.Reference, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("transfer update failed: %w", err)
	}
	return nil
}

func transferArgs(t *domain.Transfer) []interface{} {
	var (
		code     *string
		attempts *int
		sentAt   *time.Time
		expires  *time.Time
	)
	if t.OTP != nil {
		code, attempts = &t.OTP.Code, &t.OTP.AttemptCount
		sentAt, expires = &t.OTP.SentAt, &t.OTP.ExpiresAt
	}
	return []interface{}{
		t.ID, t.InitiatingUserID, t.FromAccountID, t.ToAccountID, t.Amount, t.CurrencyCode, string(t.Status),
		code, attempts, sentAt, expires, t.Note, t.Reference, t.CreatedAt, t.CompletedAt,
	}
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var (
		t        domain.Transfer
		status   string
		code     *string
		attempts *int32
		sentAt   *time.Time
		expires  *time.Time
	)
	err := row.Scan(&t.ID, &t.InitiatingUserID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.CurrencyCode, &status,
		&code, &attempts, &sentAt, &expires, &t.Note, &t.Reference, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("transfer query failed: %w", err)
	}

	t.Status = domain.TransferStatus(status)
	if code != nil && expires != nil {
		t.OTP = &domain.OTPChallenge{Code: *code, ExpiresAt: *expires}
		if attempts != nil {
			t.OTP.AttemptCount = int(*attempts)
		}
		if sentAt != nil {
			t.OTP.SentAt = *sentAt
		}
	}
	return &t, nil
}
