// Package seed loads the demo customers used by the sandbox front end.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const DemoPassword = "demo1234"

type line struct {
	desc    string
	amount  string
	daysAgo int
}

type demoAccount struct {
	name    string
	number  string
	history []line
}

type demoUser struct {
	email    string
	name     string
	accounts []demoAccount
}

var demoUsers = []demoUser{
	{
		email: "demo@mockbank.test",
		name:  "Alex Morgan",
		accounts: []demoAccount{
			{
				name:   "Everyday Checking",
				number: "4021000001",
				history: []line{
					{"Opening deposit", "3000.00", 45},
					{"Payroll - Acme Corp", "1850.00", 30},
					{"Rent - Parkside Apartments", "-1600.00", 28},
					{"Grocery Mart", "-142.35", 12},
					{"City Power & Light", "-96.40", 9},
					{"Coffee House", "-4.50", 2},
					{"Payroll - Acme Corp", "1850.00", 1},
					{"Transfer to savings", "-2406.00", 1},
				},
			},
			{
				name:   "Rainy Day Savings",
				number: "4021000002",
				history: []line{
					{"Opening deposit", "7594.00", 45},
					{"Transfer from checking", "2406.00", 1},
				},
			},
		},
	},
	{
		email: "jordan@mockbank.test",
		name:  "Jordan Lee",
		accounts: []demoAccount{
			{
				name:   "Checking",
				number: "4021000003",
				history: []line{
					{"Opening deposit", "1000.00", 20},
					{"Bookshop", "-38.90", 6},
					{"Gym membership", "-141.00", 3},
				},
			},
		},
	},
}

// Result reports what Demo wrote.
type Result struct {
	Users        int
	Accounts     int
	Transactions int
}

// Demo inserts the demo customers. Each user lands with its accounts and
// history in one write, and users whose email already exists are skipped, so
// it is safe to rerun after a failure or against an already-seeded store.
func Demo(ctx context.Context, st store.Store, currency string, now time.Time) (Result, error) {
	var res Result

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return res, fmt.Errorf("hash demo password: %w", err)
	}

	for _, du := range demoUsers {
		if _, err := st.GetUserByEmail(ctx, du.email); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return res, err
		}

		user := &domain.User{
			ID:          uuid.NewString(),
			Email:       du.email,
			Password:    string(hash),
			DisplayName: du.name,
			CreatedAt:   now.AddDate(0, 0, -60),
		}

		var (
			accounts []*domain.Account
			txs      []domain.Transaction
		)
		for i, da := range du.accounts {
			acc := &domain.Account{
				ID:           uuid.NewString(),
				OwnerUserID:  user.ID,
				DisplayName:  da.name,
				Number:       da.number,
				CurrencyCode: currency,
				CreatedAt:    user.CreatedAt.Add(time.Duration(i) * time.Minute),
			}
			balance := decimal.Zero
			for _, l := range da.history {
				amt := decimal.RequireFromString(l.amount)
				balance = balance.Add(amt)
				txs = append(txs, domain.Transaction{
					ID:           uuid.NewString(),
					AccountID:    acc.ID,
					Description:  l.desc,
					SignedAmount: amt,
					Timestamp:    now.AddDate(0, 0, -l.daysAgo),
				})
			}
			acc.Balance = balance
			accounts = append(accounts, acc)
		}

		if err := st.CreateCustomer(ctx, user, accounts, txs); err != nil {
			if errors.Is(err, store.ErrEmailTaken) {
				continue
			}
			return res, fmt.Errorf("seed user %s: %w", du.email, err)
		}

		res.Users++
		res.Accounts += len(accounts)
		res.Transactions += len(txs)
	}
	return res, nil
}
