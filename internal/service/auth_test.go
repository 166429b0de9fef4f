package service

import (
	"context"
	"testing"

	"github.com/punchamoorthee/mockbank/internal/domain"
	"github.com/punchamoorthee/mockbank/internal/events"
	"github.com/punchamoorthee/mockbank/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_CreatesUserAccountAndToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sess, err := h.auth.Register(ctx, "  ada@example.com ", "s3cret", "Ada")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, "Ada", sess.User.DisplayName)
	assert.NotEqual(t, "s3cret", sess.User.Password, "password must not be stored in the clear")

	accounts, err := h.ledger.ListAccounts(ctx, sess.User.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Balance.IsZero())
	assert.Equal(t, "USD", accounts[0].CurrencyCode)
	assert.Equal(t, "Ada Checking", accounts[0].DisplayName)
	assert.Len(t, accounts[0].Number, 10)

	user, err := h.auth.RequireAuth(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, user.ID)

	assert.Equal(t, []string{events.RoutingUserRegistered}, h.events.keys())
}

func TestRegister_DefaultsNameFromEmail(t *testing.T) {
	h := newHarness(t)

	sess, err := h.auth.Register(context.Background(), "grace@example.com", "pw", "  ")
	require.NoError(t, err)
	assert.Equal(t, "grace", sess.User.DisplayName)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"no email", "", "pw"},
		{"blank email", "   ", "pw"},
		{"no password", "x@example.com", ""},
		{"blank password", "x@example.com", "   "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.auth.Register(ctx, tc.email, tc.password, "")
			requireCode(t, domain.CodeValidation, err)
		})
	}

	_, err := h.store.GetUserByEmail(ctx, "x@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegister_PasswordKeptVerbatim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.Register(ctx, "pad@example.com", " pw ", "")
	require.NoError(t, err)

	_, err = h.auth.Login(ctx, "pad@example.com", "pw")
	requireCode(t, domain.CodeInvalidCredentials, err)
	_, err = h.auth.Login(ctx, "pad@example.com", " pw ")
	require.NoError(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.auth.Register(ctx, "dup@example.com", "pw", "First")
	require.NoError(t, err)

	_, err = h.auth.Register(ctx, "DUP@example.com", "other", "Second")
	requireCode(t, domain.CodeEmailInUse, err)
	assert.ErrorIs(t, err, domain.ErrEmailInUse)

	stored, err := h.store.GetUserByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, stored.ID)

	accounts, err := h.ledger.ListAccounts(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1, "no extra account may be opened")

	// Only the first registration produced an event.
	assert.Equal(t, []string{events.RoutingUserRegistered}, h.events.keys())
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg, err := h.auth.Register(ctx, "lin@example.com", "correct horse", "Lin")
	require.NoError(t, err)

	t.Run("wrong password", func(t *testing.T) {
		_, err := h.auth.Login(ctx, "lin@example.com", "battery staple")
		requireCode(t, domain.CodeInvalidCredentials, err)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := h.auth.Login(ctx, "nobody@example.com", "correct horse")
		requireCode(t, domain.CodeInvalidCredentials, err)
	})

	t.Run("concurrent sessions stay valid", func(t *testing.T) {
		sess, err := h.auth.Login(ctx, "lin@example.com", "correct horse")
		require.NoError(t, err)
		assert.NotEqual(t, reg.Token, sess.Token)

		for _, tok := range []string{reg.Token, sess.Token} {
			u, err := h.auth.RequireAuth(ctx, tok)
			require.NoError(t, err)
			assert.Equal(t, reg.User.ID, u.ID)
		}
	})
}

func TestRequireAuth(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.auth.RequireAuth(ctx, "")
	requireCode(t, domain.CodeUnauthorized, err)

	_, err = h.auth.RequireAuth(ctx, "not-a-token")
	requireCode(t, domain.CodeUnauthorized, err)

	sess, err := h.auth.Register(ctx, "gone@example.com", "pw", "Gone")
	require.NoError(t, err)
	h.store.DeleteUser(ctx, sess.User.ID)

	_, err = h.auth.RequireAuth(ctx, sess.Token)
	requireCode(t, domain.CodeUnauthorized, err)
}
