package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", Postgres.rebind(q))
}

func TestSQLStore_WalletRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	w := core.Wallet{
		ID: "w1", OwnerID: "u1", Name: "Nubank", Type: core.Checking,
		Balance: decimal.RequireFromString("1234.56"), Currency: "BRL", Active: true, CreatedAt: created,
	}
	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		return tx.InsertWallet(ctx, w)
	}))

	got, err := s.GetWallet(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Nubank", got.Name)
	assert.True(t, got.Balance.Equal(w.Balance), "balance %s", got.Balance)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(created))

	err = s.WithinTx(ctx, func(tx Writer) error {
		return tx.InsertWallet(ctx, core.Wallet{ID: "w2", OwnerID: "u1", Name: "Nubank", Type: core.Cash, Currency: "BRL", Active: true, CreatedAt: created})
	})
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	// The same name under another owner is allowed.
	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		return tx.InsertWallet(ctx, core.Wallet{ID: "w3", OwnerID: "u2", Name: "Nubank", Type: core.Cash, Currency: "BRL", Active: true, CreatedAt: created})
	}))

	_, err = s.GetWallet(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_TransactionQueries(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	txs := []core.Transaction{
		{ID: "t1", OwnerID: "u1", Type: core.Expense, Description: "Mercado", Category: "alim",
			Value: decimal.RequireFromString("120.50"), Date: core.NewDate(2024, 3, 10), CreatedAt: now},
		{ID: "t2", OwnerID: "u1", Type: core.Income, Description: "Salário", Category: "sal",
			Value: decimal.RequireFromString("5000"), Date: core.NewDate(2024, 3, 5), CreatedAt: now},
		{ID: "t3", OwnerID: "u1", Type: core.Expense, Description: "Uber", Category: "trans",
			Value: decimal.RequireFromString("32.10"), Date: core.NewDate(2024, 4, 1), CreatedAt: now},
		{ID: "t4", OwnerID: "u2", Type: core.Expense, Description: "Outro dono", Category: "alim",
			Value: decimal.RequireFromString("1"), Date: core.NewDate(2024, 3, 10), CreatedAt: now},
	}
	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		for _, tr := range txs {
			if err := tx.InsertTransaction(ctx, tr); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := s.QueryTransactions(ctx, TransactionFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t3", "t1", "t2"}, ids(all))

	march, err := s.QueryTransactions(ctx, TransactionFilter{
		OwnerID: "u1", From: core.NewDate(2024, 3, 1), To: core.NewDate(2024, 3, 31), Type: core.Expense,
	})
	require.NoError(t, err)
	require.Len(t, march, 1)
	assert.Equal(t, "t1", march[0].ID)
	assert.True(t, march[0].Value.Equal(decimal.RequireFromString("120.5")))
	assert.Equal(t, "2024-03-10", march[0].Date.String())

	byCat, err := s.QueryTransactions(ctx, TransactionFilter{OwnerID: "u1", Categories: []string{"sal", "trans"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3", "t2"}, ids(byCat))

	limited, err := s.QueryTransactions(ctx, TransactionFilter{OwnerID: "u1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"t3"}, ids(limited))
}

func TestSQLStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		return tx.InsertWallet(ctx, core.Wallet{ID: "w1", OwnerID: "u1", Name: "Conta", Type: core.Checking,
			Balance: decimal.NewFromInt(500), Currency: "BRL", Active: true, CreatedAt: now})
	}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx Writer) error {
		w, err := tx.LockWallet(ctx, "w1")
		if err != nil {
			return err
		}
		if _, err := tx.SetWalletBalance(ctx, "w1", w.Balance.Sub(decimal.NewFromInt(120))); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, core.Transaction{ID: "t1", OwnerID: "u1", Type: core.Expense,
			Description: "x", Category: "alim", Value: decimal.NewFromInt(120), Date: core.NewDate(2024, 1, 1),
			WalletID: "w1", CreatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	w, err := s.GetWallet(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(500)))
	_, err = s.GetTransaction(ctx, "t1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLStore_UpdateAndDeleteReportAffectedRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Now().UTC()

	o := core.RecurringObligation{ID: "o1", OwnerID: "u1", Description: "Aluguel", Category: "Moradia",
		Value: decimal.NewFromInt(1500), Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 5, 10),
		Active: true, CreatedAt: now}
	g := core.Goal{ID: "g1", OwnerID: "u1", Name: "Viagem", TargetAmount: decimal.NewFromInt(8000),
		CurrentAmount: decimal.Zero, Active: true, CreatedAt: now}

	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		if err := tx.InsertObligation(ctx, o); err != nil {
			return err
		}
		return tx.InsertGoal(ctx, g)
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		o.NextDueDate = core.NewDate(2024, 6, 10)
		n, err := tx.UpdateObligation(ctx, o)
		assert.EqualValues(t, 1, n)
		if err != nil {
			return err
		}
		n, err = tx.DeleteTransaction(ctx, "nope")
		assert.EqualValues(t, 0, n)
		return err
	}))

	got, err := s.GetObligation(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", got.NextDueDate.String())

	goal, err := s.GetGoal(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, goal.Deadline.IsZero())
	assert.True(t, goal.CurrentAmount.IsZero())
}

func TestSQLStore_Categories(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	gym := core.Category{ID: "c1", OwnerID: "u1", Name: "Academia", Type: core.Expense, Icon: "🏋️", Color: "#6b7280"}
	bonus := core.Category{ID: "c2", OwnerID: "u1", Name: "Bônus", Type: core.Income, Icon: "💰", Color: "#22c55e"}
	pets := core.Category{ID: "c3", OwnerID: "u1", Name: "Pets", Type: core.Expense}
	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		for _, c := range []core.Category{pets, gym, bonus} {
			if err := tx.InsertCategory(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := s.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, gym, got)

	list, err := s.QueryCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c2"}, func() []string {
		out := make([]string, 0, len(list))
		for _, c := range list {
			out = append(out, c.ID)
		}
		return out
	}())

	none, err := s.QueryCategories(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)

	err = s.WithinTx(ctx, func(tx Writer) error {
		return tx.InsertCategory(ctx, core.Category{ID: "c4", OwnerID: "u1", Name: "Academia", Type: core.Expense})
	})
	assert.ErrorIs(t, err, core.ErrDuplicateName)

	require.NoError(t, s.WithinTx(ctx, func(tx Writer) error {
		gym.Name, gym.Icon = "Esportes", "⚽"
		n, err := tx.UpdateCategory(ctx, gym)
		assert.EqualValues(t, 1, n)
		if err != nil {
			return err
		}
		n, err = tx.DeleteCategory(ctx, "c3")
		assert.EqualValues(t, 1, n)
		return err
	}))

	got, err = s.GetCategory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Esportes", got.Name)
	assert.Equal(t, "⚽", got.Icon)

	_, err = s.GetCategory(ctx, "c3")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func ids(txs []core.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.ID)
	}
	return out
}
