// Package memory is an in-process implementation of the storage port, used
// in development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/storage"
)

type state struct {
	transactions map[string]core.Transaction
	wallets      map[string]core.Wallet
	obligations  map[string]core.RecurringObligation
	budgets      map[string]core.Budget
	goals        map[string]core.Goal
	categories   map[string]core.Category
}

func newState() *state {
	return &state{
		transactions: map[string]core.Transaction{},
		wallets:      map[string]core.Wallet{},
		obligations:  map[string]core.RecurringObligation{},
		budgets:      map[string]core.Budget{},
		goals:        map[string]core.Goal{},
		categories:   map[string]core.Category{},
	}
}

func (s *state) clone() *state {
	c := &state{
		transactions: make(map[string]core.Transaction, len(s.transactions)),
		wallets:      make(map[string]core.Wallet, len(s.wallets)),
		obligations:  make(map[string]core.RecurringObligation, len(s.obligations)),
		budgets:      make(map[string]core.Budget, len(s.budgets)),
		goals:        make(map[string]core.Goal, len(s.goals)),
		categories:   make(map[string]core.Category, len(s.categories)),
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.obligations {
		c.obligations[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	for k, v := range s.goals {
		c.goals[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	return c
}

// Store keeps every table in maps. Units of work run one at a time against
// a private copy that replaces the live state on success.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state

	faultMu sync.Mutex
	faults  map[string][]error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), faults: map[string][]error{}}
}

// FailNext makes the next call of the named writer method return err.
// Calls queue up, one error per call.
func (s *Store) FailNext(method string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.faults[method] = append(s.faults[method], err)
}

func (s *Store) fault(method string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	q := s.faults[method]
	if len(q) == 0 {
		return nil
	}
	s.faults[method] = q[1:]
	return q[0]
}

func (s *Store) WithinTx(ctx context.Context, fn func(w storage.Writer) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&writer{reader: reader{st: work}, store: s}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }

// view returns a reader over the live state. The live state is never mutated
// in place, so the reader stays consistent after the lock is released.
func (s *Store) view() reader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return reader{st: s.st}
}

func (s *Store) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.view().GetTransaction(ctx, id)
}

func (s *Store) QueryTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.view().QueryTransactions(ctx, f)
}

func (s *Store) GetWallet(ctx context.Context, id string) (core.Wallet, error) {
	return s.view().GetWallet(ctx, id)
}

func (s *Store) QueryWallets(ctx context.Context, f storage.WalletFilter) ([]core.Wallet, error) {
	return s.view().QueryWallets(ctx, f)
}

func (s *Store) GetObligation(ctx context.Context, id string) (core.RecurringObligation, error) {
	return s.view().GetObligation(ctx, id)
}

func (s *Store) QueryObligations(ctx context.Context, f storage.ObligationFilter) ([]core.RecurringObligation, error) {
	return s.view().QueryObligations(ctx, f)
}

func (s *Store) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	return s.view().GetBudget(ctx, id)
}

func (s *Store) QueryBudgets(ctx context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	return s.view().QueryBudgets(ctx, f)
}

func (s *Store) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	return s.view().GetGoal(ctx, id)
}

func (s *Store) QueryGoals(ctx context.Context, f storage.GoalFilter) ([]core.Goal, error) {
	return s.view().QueryGoals(ctx, f)
}

func (s *Store) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return s.view().GetCategory(ctx, id)
}

func (s *Store) QueryCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	return s.view().QueryCategories(ctx, ownerID)
}

type reader struct {
	st *state
}

func notFound(table, id string) error {
	return fmt.Errorf("%s %s: %w", table, id, core.ErrNotFound)
}

func (r reader) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	t, ok := r.st.transactions[id]
	if !ok {
		return core.Transaction{}, notFound(storage.TableTransactions, id)
	}
	return t, nil
}

func (r reader) QueryTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	cats := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		cats[c] = true
	}

	var out []core.Transaction
	for _, t := range r.st.transactions {
		switch {
		case f.OwnerID != "" && t.OwnerID != f.OwnerID,
			f.WalletID != "" && t.WalletID != f.WalletID,
			f.Type != "" && t.Type != f.Type,
			!f.From.IsZero() && t.Date.Before(f.From),
			!f.To.IsZero() && t.Date.After(f.To),
			len(cats) > 0 && !cats[t.Category],
			f.TransferRef != "" && t.TransferRef != f.TransferRef,
			f.InstallmentRef != "" && t.InstallmentRef != f.InstallmentRef,
			f.TransfersOnly && t.TransferRef == "":
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.InstallmentIndex != b.InstallmentIndex {
			return a.InstallmentIndex > b.InstallmentIndex
		}
		return a.ID > b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r reader) GetWallet(_ context.Context, id string) (core.Wallet, error) {
	w, ok := r.st.wallets[id]
	if !ok {
		return core.Wallet{}, notFound(storage.TableWallets, id)
	}
	return w, nil
}

func (r reader) QueryWallets(_ context.Context, f storage.WalletFilter) ([]core.Wallet, error) {
	var out []core.Wallet
	for _, w := range r.st.wallets {
		if f.OwnerID != "" && w.OwnerID != f.OwnerID {
			continue
		}
		if f.Name != "" && w.Name != f.Name {
			continue
		}
		if f.ActiveOnly && !w.Active {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r reader) GetObligation(_ context.Context, id string) (core.RecurringObligation, error) {
	o, ok := r.st.obligations[id]
	if !ok {
		return core.RecurringObligation{}, notFound(storage.TableObligations, id)
	}
	return o, nil
}

func (r reader) QueryObligations(_ context.Context, f storage.ObligationFilter) ([]core.RecurringObligation, error) {
	var out []core.RecurringObligation
	for _, o := range r.st.obligations {
		if (f.OwnerID != "" && o.OwnerID != f.OwnerID) || (f.ActiveOnly && !o.Active) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].NextDueDate.Equal(out[j].NextDueDate) {
			return out[i].NextDueDate.Before(out[j].NextDueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r reader) GetBudget(_ context.Context, id string) (core.Budget, error) {
	b, ok := r.st.budgets[id]
	if !ok {
		return core.Budget{}, notFound(storage.TableBudgets, id)
	}
	return b, nil
}

func (r reader) QueryBudgets(_ context.Context, f storage.BudgetFilter) ([]core.Budget, error) {
	var out []core.Budget
	for _, b := range r.st.budgets {
		if (f.OwnerID != "" && b.OwnerID != f.OwnerID) || (f.ActiveOnly && !b.Active) {
			continue
		}
		if f.Period != "" && b.Period != f.Period {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r reader) GetGoal(_ context.Context, id string) (core.Goal, error) {
	g, ok := r.st.goals[id]
	if !ok {
		return core.Goal{}, notFound(storage.TableGoals, id)
	}
	return g, nil
}

func (r reader) QueryGoals(_ context.Context, f storage.GoalFilter) ([]core.Goal, error) {
	var out []core.Goal
	for _, g := range r.st.goals {
		if (f.OwnerID != "" && g.OwnerID != f.OwnerID) || (f.ActiveOnly && !g.Active) {
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r reader) GetCategory(_ context.Context, id string) (core.Category, error) {
	c, ok := r.st.categories[id]
	if !ok {
		return core.Category{}, notFound(storage.TableCategories, id)
	}
	return c, nil
}

func (r reader) QueryCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	var out []core.Category
	for _, c := range r.st.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return out, nil
}

type writer struct {
	reader
	store *Store
}

func (w *writer) LockWallet(ctx context.Context, id string) (core.Wallet, error) {
	if err := w.store.fault("LockWallet"); err != nil {
		return core.Wallet{}, &core.StorageError{Op: "lock", Table: storage.TableWallets, ID: id, Err: err}
	}
	return w.GetWallet(ctx, id)
}

func (w *writer) InsertTransaction(_ context.Context, t core.Transaction) error {
	if err := w.store.fault("InsertTransaction"); err != nil {
		return &core.StorageError{Op: "insert", Table: storage.TableTransactions, ID: t.ID, Err: err}
	}
	if _, ok := w.st.transactions[t.ID]; ok {
		return &core.StorageError{Op: "insert", Table: storage.TableTransactions, ID: t.ID, Err: fmt.Errorf("duplicate id")}
	}
	if t.WalletID != "" {
		if _, ok := w.st.wallets[t.WalletID]; !ok {
			return &core.StorageError{Op: "insert", Table: storage.TableTransactions, ID: t.ID, Err: fmt.Errorf("unknown wallet %s", t.WalletID)}
		}
	}
	w.st.transactions[t.ID] = t
	return nil
}

func (w *writer) UpdateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if err := w.store.fault("UpdateTransaction"); err != nil {
		return 0, &core.StorageError{Op: "update", Table: storage.TableTransactions, ID: t.ID, Err: err}
	}
	old, ok := w.st.transactions[t.ID]
	if !ok {
		return 0, nil
	}
	old.Type = t.Type
	old.Description = t.Description
	old.Category = t.Category
	old.Value = t.Value
	old.Date = t.Date
	old.WalletID = t.WalletID
	w.st.transactions[t.ID] = old
	return 1, nil
}

func (w *writer) DeleteTransaction(_ context.Context, id string) (int64, error) {
	if err := w.store.fault("DeleteTransaction"); err != nil {
		return 0, &core.StorageError{Op: "delete", Table: storage.TableTransactions, ID: id, Err: err}
	}
	if _, ok := w.st.transactions[id]; !ok {
		return 0, nil
	}
	delete(w.st.transactions, id)
	return 1, nil
}

func (w *writer) InsertWallet(_ context.Context, wallet core.Wallet) error {
	if err := w.store.fault("InsertWallet"); err != nil {
		return &core.StorageError{Op: "insert", Table: storage.TableWallets, ID: wallet.ID, Err: err}
	}
	for _, existing := range w.st.wallets {
		if existing.OwnerID == wallet.OwnerID && existing.Name == wallet.Name {
			return &core.StorageError{Op: "insert", Table: storage.TableWallets, ID: wallet.ID, Err: core.ErrDuplicateName}
		}
	}
	w.st.wallets[wallet.ID] = wallet
	return nil
}

func (w *writer) UpdateWallet(_ context.Context, wallet core.Wallet) (int64, error) {
	if err := w.store.fault("UpdateWallet"); err != nil {
		return 0, &core.StorageError{Op: "update", Table: storage.TableWallets, ID: wallet.ID, Err: err}
	}
	old, ok := w.st.wallets[wallet.ID]
	if !ok {
		return 0, nil
	}
	for id, existing := range w.st.wallets {
		if id != wallet.ID && existing.OwnerID == old.OwnerID && existing.Name == wallet.Name {
			return 0, &core.StorageError{Op: "update", Table: storage.TableWallets, ID: wallet.ID, Err: core.ErrDuplicateName}
		}
	}
	old.Name = wallet.Name
	old.Type = wallet.Type
	old.Currency = wallet.Currency
	old.Active = wallet.Active
	w.st.wallets[wallet.ID] = old
	return 1, nil
}

func (w *writer) SetWalletBalance(_ context.Context, id string, balance decimal.Decimal) (int64, error) {
	if err := w.store.fault("SetWalletBalance"); err != nil {
		return 0, &core.StorageError{Op: "update balance", Table: storage.TableWallets, ID: id, Err: err}
	}
	old, ok := w.st.wallets[id]
	if !ok {
		return 0, nil
	}
	old.Balance = balance
	w.st.wallets[id] = old
	return 1, nil
}

func (w *writer) InsertObligation(_ context.Context, o core.RecurringObligation) error {
	if err := w.store.fault("InsertObligation"); err != nil {
		return &core.StorageError{Op: "insert", Table: storage.TableObligations, ID: o.ID, Err: err}
	}
	w.st.obligations[o.ID] = o
	return nil
}

func (w *writer) UpdateObligation(_ context.Context, o core.RecurringObligation) (int64, error) {
	if err := w.store.fault("UpdateObligation"); err != nil {
		return 0, &core.StorageError{Op: "update", Table: storage.TableObligations, ID: o.ID, Err: err}
	}
	old, ok := w.st.obligations[o.ID]
	if !ok {
		return 0, nil
	}
	o.OwnerID, o.CreatedAt = old.OwnerID, old.CreatedAt
	w.st.obligations[o.ID] = o
	return 1, nil
}

func (w *writer) InsertBudget(_ context.Context, b core.Budget) error {
	if err := w.store.fault("InsertBudget"); err != nil {
		return &core.StorageError{Op: "insert", Table: storage.TableBudgets, ID: b.ID, Err: err}
	}
	w.st.budgets[b.ID] = b
	return nil
}

func (w *writer) UpdateBudget(_ context.Context, b core.Budget) (int64, error) {
	if err := w.store.fault("UpdateBudget"); err != nil {
		return 0, &core.StorageError{Op: "update", Table: storage.TableBudgets, ID: b.ID, Err: err}
	}
	old, ok := w.st.budgets[b.ID]
	if !ok {
		return 0, nil
	}
	b.OwnerID, b.CreatedAt = old.OwnerID, old.CreatedAt
	w.st.budgets[b.ID] = b
	return 1, nil
}

func (w *writer) InsertGoal(_ context.Context, g core.Goal) error {
	if err := w.store.fault("InsertGoal"); err != nil {
		return &core.StorageError{Op: "insert", Table: storage.TableGoals, ID: g.ID, Err: err}
	}
	w.st.goals[g.ID] = g
	return nil
}

func (w *writer) UpdateGoal(_ context.Context, g core.Goal) (int64, error) {
	if err := w.store.fault("UpdateGoal"); err != nil {
		return 0, &core.StorageError{Op: "update", Table: storage.TableGoals, ID: g.ID, Err: err}
	}
	old, ok := w.st.goals[g.ID]
	if !ok {
		return 0, nil
	}
	g.OwnerID, g.CreatedAt = old.OwnerID, old.CreatedAt
	w.st.goals[g.ID] = g
	return 1, nil
}

func (w *writer) InsertCategory(_ context.Context, c core.Category) error {
	if err := w.store.fault("InsertCategory"); err != nil {
		return &core.StorageError{Op: "insert", Table: storage.TableCategories, ID: c.ID, Err: err}
	}
	for _, existing := range w.st.categories {
		if existing.OwnerID == c.OwnerID && existing.Type == c.Type && existing.Name == c.Name {
			return &core.StorageError{Op: "insert", Table: storage.TableCategories, ID: c.ID, Err: core.ErrDuplicateName}
		}
	}
	w.st.categories[c.ID] = c
	return nil
}

func (w *writer) UpdateCategory(_ context.Context, c core.Category) (int64, error) {
	if err := w.store.fault("UpdateCategory"); err != nil {
		return 0, &core.StorageError{Op: "update", Table: storage.TableCategories, ID: c.ID, Err: err}
	}
	old, ok := w.st.categories[c.ID]
	if !ok {
		return 0, nil
	}
	for id, existing := range w.st.categories {
		if id != c.ID && existing.OwnerID == old.OwnerID && existing.Type == old.Type && existing.Name == c.Name {
			return 0, &core.StorageError{Op: "update", Table: storage.TableCategories, ID: c.ID, Err: core.ErrDuplicateName}
		}
	}
	old.Name = c.Name
	old.Icon = c.Icon
	old.Color = c.Color
	w.st.categories[c.ID] = old
	return 1, nil
}

func (w *writer) DeleteCategory(_ context.Context, id string) (int64, error) {
	if err := w.store.fault("DeleteCategory"); err != nil {
		return 0, &core.StorageError{Op: "delete", Table: storage.TableCategories, ID: id, Err: err}
	}
	if _, ok := w.st.categories[id]; !ok {
		return 0, nil
	}
	delete(w.st.categories, id)
	return 1, nil
}
