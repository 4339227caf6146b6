package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
	"carteira/internal/storage/memory"
)

const (
	alice = "alice"
	bob   = "bob"
)

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev core.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) kinds() []core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type env struct {
	t      *testing.T
	ctx    context.Context
	store  *memory.Store
	events *recorder
	now    time.Time

	ledger        *Ledger
	wallets       *Wallets
	obligations   *Obligations
	budgets       *Budgets
	goals         *Goals
	notifications *Notifications
	importer      *Importer
	reconciler    *Reconciler
	categories    *Categories
}

func newEnv(t *testing.T, extra ...Option) *env {
	t.Helper()
	e := &env{
		t:      t,
		ctx:    context.Background(),
		store:  memory.New(),
		events: &recorder{},
		now:    time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	var seq atomic.Int64
	opts := []Option{
		WithPublisher(e.events),
		WithLogger(log.Discard()),
		WithClock(func() time.Time { return e.now }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%04d", seq.Add(1)) }),
	}
	opts = append(opts, extra...)

	e.ledger = NewLedger(e.store, opts...)
	e.wallets = NewWallets(e.store, opts...)
	e.obligations = NewObligations(e.store, opts...)
	e.budgets = NewBudgets(e.store, opts...)
	e.goals = NewGoals(e.store, opts...)
	e.notifications = NewNotifications(e.store, e.budgets, opts...)
	e.importer = NewImporter(e.store, opts...)
	e.reconciler = NewReconciler(e.store, e.wallets, opts...)
	e.categories = NewCategories(e.store, opts...)
	return e
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *env) wallet(owner, name, initial string) core.Wallet {
	e.t.Helper()
	w, err := e.wallets.Create(e.ctx, owner, core.WalletInput{
		Name:           name,
		Type:           "checking",
		InitialBalance: dec(initial),
	})
	require.NoError(e.t, err)
	return w
}

func (e *env) balance(walletID string) decimal.Decimal {
	e.t.Helper()
	w, err := e.store.GetWallet(e.ctx, walletID)
	require.NoError(e.t, err)
	return w.Balance
}

func (e *env) requireBalance(walletID, want string) {
	e.t.Helper()
	got := e.balance(walletID)
	require.Truef(e.t, got.Equal(dec(want)), "balance of %s: got %s, want %s", walletID, got, want)
}

func (e *env) expense(owner, walletID, value, category, date string) core.Transaction {
	e.t.Helper()
	tx, err := e.ledger.Create(e.ctx, owner, core.TransactionInput{
		Type:        "expense",
		Description: "compra",
		Category:    category,
		Value:       dec(value),
		Date:        date,
		WalletID:    walletID,
	})
	require.NoError(e.t, err)
	return tx
}

func (e *env) walletTransactions(walletID string) []core.Transaction {
	e.t.Helper()
	txs, err := e.store.QueryTransactions(e.ctx, storage.TransactionFilter{WalletID: walletID})
	require.NoError(e.t, err)
	return txs
}
