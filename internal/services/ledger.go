package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

const (
	MinBatchSize = 2
	MaxBatchSize = 48
)

// Ledger records transactions and keeps the balance of the wallets they
// reference in step, inside one unit of work per operation.
type Ledger struct {
	store storage.Store
	options
}

func NewLedger(store storage.Store, opts ...Option) *Ledger {
	return &Ledger{store: store, options: buildOptions(log.ComponentLedger, opts)}
}

// TransactionFilter narrows List. OwnerID always comes from the caller.
type TransactionFilter struct {
	WalletID string
	Type     core.TransactionType
	From     core.Date
	To       core.Date
	Category string
	Limit    int
}

// Create validates in and stores it, applying its signed value to the
// referenced wallet. A category given by name is stored as the id of the
// owner's category with that name and type.
func (l *Ledger) Create(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	tx, err := in.Normalize()
	if err != nil {
		return core.Transaction{}, err
	}
	catalog, err := l.catalogFor(ctx, l.store, ownerID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Category = catalog.Resolve(tx.Category, tx.Type)
	if tx.Category == core.TransferCategory {
		return core.Transaction{}, reservedCategory()
	}
	tx.ID = l.newID()
	tx.OwnerID = ownerID
	tx.CreatedAt = l.now().UTC()

	err = l.store.WithinTx(ctx, func(w storage.Writer) error {
		return insertWithBalance(ctx, w, tx)
	})
	if err != nil {
		l.logFailure(ctx, log.OpCreate, ownerID, err, []string{tx.WalletID}, tx.ID)
		return core.Transaction{}, err
	}

	l.publish(ctx, core.NewLedgerEvent(core.EventTransactionCreated, ownerID, []string{tx.ID}, tx.WalletID))
	return tx, nil
}

// insertWithBalance stores tx and applies its signed value to its wallet.
// The wallet must belong to the transaction owner and be active.
func insertWithBalance(ctx context.Context, w storage.Writer, tx core.Transaction) error {
	if tx.WalletID != "" {
		if _, err := lockOwnedWallet(ctx, w, tx.OwnerID, tx.WalletID, true); err != nil {
			return err
		}
	}
	if err := w.InsertTransaction(ctx, tx); err != nil {
		return step("insert transaction", err)
	}
	deltas := walletDeltas{}
	deltas.add(tx.WalletID, tx.Signed())
	return deltas.apply(ctx, w)
}

// CreateBatch stores 2 to 48 installments sharing one installment
// reference. When walletID is set every item is routed to it. Each wallet
// receives a single delta: the exact sum of its items' signed values.
func (l *Ledger) CreateBatch(ctx context.Context, ownerID string, items []core.TransactionInput, walletID string) ([]string, error) {
	if len(items) < MinBatchSize || len(items) > MaxBatchSize {
		return nil, core.NewValidationError("items",
			fmt.Sprintf("a batch must have between %d and %d items", MinBatchSize, MaxBatchSize))
	}

	catalog, err := l.catalogFor(ctx, l.store, ownerID)
	if err != nil {
		return nil, err
	}

	walletID = strings.TrimSpace(walletID)
	ref := l.newID()
	created := l.now().UTC()

	var p core.Problems
	txs := make([]core.Transaction, 0, len(items))
	for i, in := range items {
		if walletID != "" {
			in.WalletID = walletID
		}
		tx, err := in.Normalize()
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			for _, fe := range ve.Problems {
				p.Add(fmt.Sprintf("items[%d].%s", i, fe.Field), fmt.Sprintf("item %d: %s", i+1, fe.Message))
			}
			continue
		}
		tx.Category = catalog.Resolve(tx.Category, tx.Type)
		if tx.Category == core.TransferCategory {
			p.Add(fmt.Sprintf("items[%d].category", i), fmt.Sprintf("item %d: %s", i+1, reservedCategory().Error()))
			continue
		}
		tx.ID = l.newID()
		tx.OwnerID = ownerID
		tx.CreatedAt = created
		tx.InstallmentRef = ref
		tx.InstallmentIndex = i + 1
		tx.InstallmentCount = len(items)
		txs = append(txs, tx)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(txs))
	wallets := make([]string, 0, len(txs))
	deltas := walletDeltas{}
	for i, tx := range txs {
		ids[i] = tx.ID
		wallets = append(wallets, tx.WalletID)
		deltas.add(tx.WalletID, tx.Signed())
	}

	err = l.store.WithinTx(ctx, func(w storage.Writer) error {
		if err := checkWallets(ctx, w, ownerID, wallets, true); err != nil {
			return err
		}
		for _, tx := range txs {
			if err := w.InsertTransaction(ctx, tx); err != nil {
				return step(fmt.Sprintf("insert installment %d/%d", tx.InstallmentIndex, tx.InstallmentCount), err)
			}
		}
		return deltas.apply(ctx, w)
	})
	if err != nil {
		l.logFailure(ctx, log.OpBatch, ownerID, err, deltas.ids(), ids...)
		return nil, err
	}

	l.publish(ctx, core.NewLedgerEvent(core.EventBatchCreated, ownerID, ids, deltas.ids()...))
	return ids, nil
}

// Update replaces the fields of transaction id. The old value is reversed
// on the old wallet and the new value applied on the new one. Transfer legs
// accept only description and date changes; the date moves both legs.
func (l *Ledger) Update(ctx context.Context, id, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	next, err := in.Normalize()
	if err != nil {
		return core.Transaction{}, err
	}

	var (
		updated core.Transaction
		touched []string
		txIDs   = []string{id}
	)
	err = l.store.WithinTx(ctx, func(w storage.Writer) error {
		old, err := w.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if !old.OwnedBy(ownerID) {
			return fmt.Errorf("transaction %s: %w", id, core.ErrForbidden)
		}
		catalog, err := l.catalogFor(ctx, w, ownerID)
		if err != nil {
			return err
		}
		next.Category = catalog.Resolve(next.Category, next.Type)

		if old.IsTransferLeg() {
			if err := checkTransferLegUpdate(old, next); err != nil {
				return err
			}
			updated = old
			updated.Description = next.Description
			updated.Date = next.Date
			if _, err := w.UpdateTransaction(ctx, updated); err != nil {
				return step("update transfer leg", err)
			}
			if !old.Date.Equal(next.Date) {
				pair, err := w.GetTransaction(ctx, old.TransferRef)
				if err != nil {
					return step("load counterpart leg", err)
				}
				pair.Date = next.Date
				if _, err := w.UpdateTransaction(ctx, pair); err != nil {
					return step("update counterpart leg", err)
				}
				txIDs = append(txIDs, pair.ID)
			}
			return nil
		}

		if next.Category == core.TransferCategory {
			return reservedCategory()
		}
		if next.WalletID != "" && next.WalletID != old.WalletID {
			if _, err := lockOwnedWallet(ctx, w, ownerID, next.WalletID, true); err != nil {
				return err
			}
		}

		updated = old
		updated.Type = next.Type
		updated.Description = next.Description
		updated.Category = next.Category
		updated.Value = next.Value
		updated.Date = next.Date
		updated.WalletID = next.WalletID

		n, err := w.UpdateTransaction(ctx, updated)
		if err != nil {
			return step("update transaction", err)
		}
		if n == 0 {
			return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}

		deltas := walletDeltas{}
		deltas.add(old.WalletID, old.Signed().Neg())
		deltas.add(updated.WalletID, updated.Signed())
		touched = deltas.ids()
		return deltas.apply(ctx, w)
	})
	if err != nil {
		l.logFailure(ctx, log.OpUpdate, ownerID, err, touched, id)
		return core.Transaction{}, err
	}

	l.publish(ctx, core.NewLedgerEvent(core.EventTransactionUpdated, ownerID, txIDs, touched...))
	return updated, nil
}

func checkTransferLegUpdate(old, next core.Transaction) error {
	var p core.Problems
	if next.Type != old.Type {
		p.Add("type", "type of a transfer leg cannot change")
	}
	if next.Category != old.Category {
		p.Add("category", "category of a transfer leg cannot change")
	}
	if !next.Value.Equal(old.Value) {
		p.Add("value", "value of a transfer leg cannot change")
	}
	if next.WalletID != old.WalletID {
		p.Add("walletId", "wallet of a transfer leg cannot change")
	}
	return p.Err()
}

// Delete removes transaction id and reverses its effect on its wallet.
// Deleting either leg of a transfer removes both.
func (l *Ledger) Delete(ctx context.Context, id, ownerID string) error {
	var (
		deltas = walletDeltas{}
		txIDs  = []string{id}
	)
	err := l.store.WithinTx(ctx, func(w storage.Writer) error {
		tx, err := w.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if !tx.OwnedBy(ownerID) {
			return fmt.Errorf("transaction %s: %w", id, core.ErrForbidden)
		}

		victims := []core.Transaction{tx}
		if tx.IsTransferLeg() {
			pair, err := w.GetTransaction(ctx, tx.TransferRef)
			switch {
			case err == nil:
				victims = append(victims, pair)
				txIDs = append(txIDs, pair.ID)
			case !errors.Is(err, core.ErrNotFound):
				return step("load counterpart leg", err)
			}
		}

		for _, v := range victims {
			deltas.add(v.WalletID, v.Signed().Neg())
		}
		for _, v := range victims {
			n, err := w.DeleteTransaction(ctx, v.ID)
			if err != nil {
				return step("delete transaction "+v.ID, err)
			}
			if n == 0 {
				return fmt.Errorf("transaction %s: %w", v.ID, core.ErrNotFound)
			}
		}
		return deltas.apply(ctx, w)
	})
	if err != nil {
		l.logFailure(ctx, log.OpDelete, ownerID, err, deltas.ids(), txIDs...)
		return err
	}

	l.publish(ctx, core.NewLedgerEvent(core.EventTransactionDeleted, ownerID, txIDs, deltas.ids()...))
	return nil
}

// Get returns transaction id when it belongs to ownerID.
func (l *Ledger) Get(ctx context.Context, id, ownerID string) (core.Transaction, error) {
	tx, err := l.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if !tx.OwnedBy(ownerID) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrForbidden)
	}
	return tx, nil
}

// List returns the owner's transactions, newest first.
func (l *Ledger) List(ctx context.Context, ownerID string, f TransactionFilter) ([]core.Transaction, error) {
	q := storage.TransactionFilter{
		OwnerID:  ownerID,
		WalletID: f.WalletID,
		Type:     f.Type,
		From:     f.From,
		To:       f.To,
		Limit:    f.Limit,
	}
	if f.Category != "" {
		catalog, err := l.catalogFor(ctx, l.store, ownerID)
		if err != nil {
			return nil, err
		}
		q.Categories = catalog.Matching(f.Category)
	}
	txs, err := l.store.QueryTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// SumByTypeAndPeriod totals the owner's transactions of type t within the
// calendar month yearMonth ("2006-01").
func (l *Ledger) SumByTypeAndPeriod(ctx context.Context, ownerID string, t core.TransactionType, yearMonth string) (core.PeriodTotal, error) {
	if t != core.Income && t != core.Expense {
		return core.PeriodTotal{}, core.NewValidationError("type", "type must be income or expense")
	}
	month, err := time.Parse("2006-01", strings.TrimSpace(yearMonth))
	if err != nil {
		return core.PeriodTotal{}, core.NewValidationError("month", "month must be in YYYY-MM format")
	}
	from := core.DateOf(month)
	txs, err := l.store.QueryTransactions(ctx, storage.TransactionFilter{
		OwnerID: ownerID,
		Type:    t,
		From:    from,
		To:      from.AddMonths(1).AddDays(-1),
	})
	if err != nil {
		return core.PeriodTotal{}, fmt.Errorf("sum transactions: %w", err)
	}

	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Value)
	}
	return core.PeriodTotal{
		OwnerID:   ownerID,
		Type:      t,
		YearMonth: from.YearMonth(),
		Total:     total,
		Count:     len(txs),
	}, nil
}

func reservedCategory() error {
	return core.NewValidationError("category", "category transfer is reserved for transfers")
}
