// Package storage defines the persistence port of the ledger and its SQL
// implementation.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

// Table names, used in errors and logs.
const (
	TableTransactions = "transactions"
	TableWallets      = "wallets"
	TableObligations  = "recurring_obligations"
	TableBudgets      = "budgets"
	TableGoals        = "goals"
	TableCategories   = "categories"
)

type (
	// TransactionFilter selects transactions. Zero fields do not filter.
	TransactionFilter struct {
		OwnerID        string
		WalletID       string
		Type           core.TransactionType
		From           core.Date // inclusive
		To             core.Date // inclusive
		Categories     []string
		TransferRef    string
		InstallmentRef string
		TransfersOnly  bool
		Limit          int
	}

	WalletFilter struct {
		OwnerID    string
		Name       string
		ActiveOnly bool
	}

	ObligationFilter struct {
		OwnerID    string
		ActiveOnly bool
	}

	BudgetFilter struct {
		OwnerID    string
		Period     core.BudgetPeriod
		ActiveOnly bool
	}

	GoalFilter struct {
		OwnerID    string
		ActiveOnly bool
	}
)

// Reader is the read side of the port. Get methods return an error wrapping
// core.ErrNotFound when the id does not exist.
type Reader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	// QueryTransactions orders by date descending, newest first.
	QueryTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)

	GetWallet(ctx context.Context, id string) (core.Wallet, error)
	// QueryWallets orders by name.
	QueryWallets(ctx context.Context, f WalletFilter) ([]core.Wallet, error)

	GetObligation(ctx context.Context, id string) (core.RecurringObligation, error)
	// QueryObligations orders by next due date.
	QueryObligations(ctx context.Context, f ObligationFilter) ([]core.RecurringObligation, error)

	GetBudget(ctx context.Context, id string) (core.Budget, error)
	// QueryBudgets orders by creation time.
	QueryBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error)

	GetGoal(ctx context.Context, id string) (core.Goal, error)
	// QueryGoals orders by creation time.
	QueryGoals(ctx context.Context, f GoalFilter) ([]core.Goal, error)

	GetCategory(ctx context.Context, id string) (core.Category, error)
	// QueryCategories returns the categories created by ownerID, ordered by
	// type and name.
	QueryCategories(ctx context.Context, ownerID string) ([]core.Category, error)
}

// Writer is available inside a unit of work. Update and delete methods
// return the number of affected rows.
type Writer interface {
	Reader

	// LockWallet reads a wallet and keeps it locked until the unit of work ends.
	LockWallet(ctx context.Context, id string) (core.Wallet, error)

	InsertTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, id string) (int64, error)

	// InsertWallet returns an error wrapping core.ErrDuplicateName when the
	// owner already has a wallet with that name.
	InsertWallet(ctx context.Context, w core.Wallet) error
	// UpdateWallet writes everything but the balance.
	UpdateWallet(ctx context.Context, w core.Wallet) (int64, error)
	SetWalletBalance(ctx context.Context, id string, balance decimal.Decimal) (int64, error)

	InsertObligation(ctx context.Context, o core.RecurringObligation) error
	UpdateObligation(ctx context.Context, o core.RecurringObligation) (int64, error)

	InsertBudget(ctx context.Context, b core.Budget) error
	UpdateBudget(ctx context.Context, b core.Budget) (int64, error)

	InsertGoal(ctx context.Context, g core.Goal) error
	UpdateGoal(ctx context.Context, g core.Goal) (int64, error)

	// InsertCategory returns an error wrapping core.ErrDuplicateName when the
	// owner already has a category with that name and type.
	InsertCategory(ctx context.Context, c core.Category) error
	// UpdateCategory writes name, icon and color.
	UpdateCategory(ctx context.Context, c core.Category) (int64, error)
	DeleteCategory(ctx context.Context, id string) (int64, error)
}

// Store is the persistence port consumed by the services.
type Store interface {
	Reader

	// WithinTx runs fn as one unit of work. Writes are committed when fn
	// returns nil and discarded otherwise.
	WithinTx(ctx context.Context, fn func(w Writer) error) error

	Close() error
}
