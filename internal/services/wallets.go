package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

const (
	defaultTransferDescription = "Transferência"
	openingDescription         = "Saldo inicial"
)

// Wallets manages wallets and the operations that move money between
// them.
type Wallets struct {
	store storage.Store
	options
}

func NewWallets(store storage.Store, opts ...Option) *Wallets {
	return &Wallets{store: store, options: buildOptions(log.ComponentWallet, opts)}
}

// TransferInput describes a transfer between two wallets of one owner.
type TransferInput struct {
	FromWalletID string          `json:"fromWalletId"`
	ToWalletID   string          `json:"toWalletId"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description,omitempty"`
	Date         string          `json:"date,omitempty"`
}

// Transfer is the pair of legs a transfer creates.
type Transfer struct {
	From core.Transaction `json:"fromLeg"`
	To   core.Transaction `json:"toLeg"`
}

// Drift compares a wallet's stored balance with the signed sum of its
// transactions.
type Drift struct {
	WalletID   string          `json:"walletId"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Difference decimal.Decimal `json:"difference"`
	Drifted    bool            `json:"drifted"`
}

// Create stores a new wallet. Names are unique per owner, ignoring case.
// A non-zero initial balance is booked as an opening transaction so the
// balance stays equal to the sum of the wallet's transactions.
func (s *Wallets) Create(ctx context.Context, ownerID string, in core.WalletInput) (core.Wallet, error) {
	wallet, err := in.Normalize()
	if err != nil {
		return core.Wallet{}, err
	}
	if wallet.Balance.Abs().GreaterThan(core.MaxTransactionValue) {
		return core.Wallet{}, core.NewValidationError("initialBalance", "initialBalance must be at most 999999999")
	}
	wallet.ID = s.newID()
	wallet.OwnerID = ownerID
	wallet.CreatedAt = s.now().UTC()

	opening := s.openingTransaction(wallet)
	wallet.Balance = decimal.Zero

	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		if err := s.checkNameFree(ctx, w, ownerID, wallet.Name, ""); err != nil {
			return err
		}
		if err := w.InsertWallet(ctx, wallet); err != nil {
			return step("insert wallet", err)
		}
		if opening == nil {
			return nil
		}
		return insertWithBalance(ctx, w, *opening)
	})
	if err != nil {
		s.logFailure(ctx, log.OpCreate, ownerID, err, []string{wallet.ID})
		return core.Wallet{}, err
	}

	if opening != nil {
		wallet.Balance = opening.Signed()
		s.publish(ctx, core.NewLedgerEvent(core.EventTransactionCreated, ownerID, []string{opening.ID}, wallet.ID))
	}
	return wallet, nil
}

func (s *Wallets) openingTransaction(wallet core.Wallet) *core.Transaction {
	if wallet.Balance.IsZero() {
		return nil
	}
	tx := &core.Transaction{
		ID:          s.newID(),
		OwnerID:     wallet.OwnerID,
		Type:        core.Income,
		Description: openingDescription,
		Category:    s.catalog.ResolveName("Outros", core.Income, "out-ent"),
		Value:       wallet.Balance,
		Date:        core.DateOf(wallet.CreatedAt),
		WalletID:    wallet.ID,
		CreatedAt:   wallet.CreatedAt,
	}
	if wallet.Balance.IsNegative() {
		tx.Type = core.Expense
		tx.Value = wallet.Balance.Neg()
		tx.Category = s.catalog.ResolveName("Outros", core.Expense, "out-desp")
	}
	return tx
}

func (s *Wallets) checkNameFree(ctx context.Context, r storage.Reader, ownerID, name, exceptID string) error {
	existing, err := r.QueryWallets(ctx, storage.WalletFilter{OwnerID: ownerID})
	if err != nil {
		return step("check wallet name", err)
	}
	for _, w := range existing {
		if w.ID != exceptID && strings.EqualFold(w.Name, name) {
			return fmt.Errorf("wallet %q: %w", name, core.ErrDuplicateName)
		}
	}
	return nil
}

// List returns the owner's wallets ordered by name.
func (s *Wallets) List(ctx context.Context, ownerID string, activeOnly bool) ([]core.Wallet, error) {
	wallets, err := s.store.QueryWallets(ctx, storage.WalletFilter{OwnerID: ownerID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

// Get returns wallet id when it belongs to ownerID.
func (s *Wallets) Get(ctx context.Context, id, ownerID string) (core.Wallet, error) {
	wallet, err := s.store.GetWallet(ctx, id)
	if err != nil {
		return core.Wallet{}, err
	}
	if !wallet.OwnedBy(ownerID) {
		return core.Wallet{}, fmt.Errorf("wallet %s: %w", id, core.ErrForbidden)
	}
	return wallet, nil
}

// Update renames a wallet or changes its type or currency tag. The balance
// is never written here; InitialBalance is ignored.
func (s *Wallets) Update(ctx context.Context, id, ownerID string, in core.WalletInput) (core.Wallet, error) {
	next, err := in.Normalize()
	if err != nil {
		return core.Wallet{}, err
	}

	var updated core.Wallet
	err = s.store.WithinTx(ctx, func(w storage.Writer) error {
		current, err := w.LockWallet(ctx, id)
		if err != nil {
			return err
		}
		if !current.OwnedBy(ownerID) {
			return fmt.Errorf("wallet %s: %w", id, core.ErrForbidden)
		}
		if err := s.checkNameFree(ctx, w, ownerID, next.Name, id); err != nil {
			return err
		}
		updated = current
		updated.Name = next.Name
		updated.Type = next.Type
		updated.Currency = next.Currency
		_, err = w.UpdateWallet(ctx, updated)
		return step("update wallet", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, ownerID, err, []string{id})
		return core.Wallet{}, err
	}
	return updated, nil
}

// Deactivate soft-deletes a wallet. Its transactions and balance stay.
func (s *Wallets) Deactivate(ctx context.Context, id, ownerID string) error {
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		current, err := w.LockWallet(ctx, id)
		if err != nil {
			return err
		}
		if !current.OwnedBy(ownerID) {
			return fmt.Errorf("wallet %s: %w", id, core.ErrForbidden)
		}
		current.Active = false
		_, err = w.UpdateWallet(ctx, current)
		return step("deactivate wallet", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, ownerID, err, []string{id})
	}
	return err
}

// Transfer moves amount from one wallet to another as a pair of linked
// legs. Every precondition is checked before the first write, so a failed
// transfer leaves balances and the log untouched.
func (s *Wallets) Transfer(ctx context.Context, ownerID string, in TransferInput) (Transfer, error) {
	var p core.Problems
	from := strings.TrimSpace(in.FromWalletID)
	to := strings.TrimSpace(in.ToWalletID)
	if from == "" {
		p.Add("fromWalletId", "fromWalletId is required")
	}
	if to == "" {
		p.Add("toWalletId", "toWalletId is required")
	}
	switch {
	case !in.Amount.IsPositive():
		p.Add("amount", "amount must be greater than zero")
	case in.Amount.GreaterThan(core.MaxTransactionValue):
		p.Add("amount", "amount must be at most 999999999")
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = defaultTransferDescription
	} else if len([]rune(desc)) > core.MaxDescriptionLength {
		p.Add("description", "description is too long")
	}
	date := s.today()
	if ds := strings.TrimSpace(in.Date); ds != "" {
		d, err := core.ParseDate(ds)
		if err != nil {
			p.Add("date", "date must be a valid YYYY-MM-DD date")
		}
		date = d
	}
	if err := p.Err(); err != nil {
		return Transfer{}, err
	}
	if from == to {
		return Transfer{}, core.ErrSameWalletTransfer
	}

	created := s.now().UTC()
	out := Transfer{
		From: core.Transaction{
			ID: s.newID(), OwnerID: ownerID, Type: core.Expense, Category: core.TransferCategory,
			Value: in.Amount, Date: date, WalletID: from, CreatedAt: created,
		},
		To: core.Transaction{
			ID: s.newID(), OwnerID: ownerID, Type: core.Income, Category: core.TransferCategory,
			Value: in.Amount, Date: date, WalletID: to, CreatedAt: created,
		},
	}
	out.From.TransferRef = out.To.ID
	out.To.TransferRef = out.From.ID

	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		// Lock in id order.
		first, second := from, to
		if second < first {
			first, second = second, first
		}
		locked := map[string]core.Wallet{}
		for _, id := range []string{first, second} {
			wallet, err := lockOwnedWallet(ctx, w, ownerID, id, true)
			if err != nil {
				return err
			}
			locked[id] = wallet
		}

		source, dest := locked[from], locked[to]
		if source.Balance.LessThan(in.Amount) {
			return fmt.Errorf("wallet %s has %s, needs %s: %w",
				source.ID, source.Balance.StringFixed(2), in.Amount.StringFixed(2), core.ErrInsufficientFunds)
		}

		out.From.Description = legDescription(desc, "→", dest.Name)
		out.To.Description = legDescription(desc, "←", source.Name)

		if err := w.InsertTransaction(ctx, out.From); err != nil {
			return step("insert source leg", err)
		}
		if err := w.InsertTransaction(ctx, out.To); err != nil {
			return step("insert destination leg", err)
		}
		deltas := walletDeltas{}
		deltas.add(from, in.Amount.Neg())
		deltas.add(to, in.Amount)
		return deltas.apply(ctx, w)
	})
	if err != nil {
		s.logFailure(ctx, log.OpTransfer, ownerID, err, []string{from, to}, out.From.ID, out.To.ID)
		return Transfer{}, err
	}

	s.publish(ctx, core.NewLedgerEvent(core.EventTransferCreated, ownerID,
		[]string{out.From.ID, out.To.ID}, from, to))
	return out, nil
}

// ListTransfers returns the owner's transfers, newest first, as pairs of
// legs.
func (s *Wallets) ListTransfers(ctx context.Context, ownerID string) ([]Transfer, error) {
	legs, err := s.store.QueryTransactions(ctx, storage.TransactionFilter{OwnerID: ownerID, TransfersOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}

	byID := make(map[string]core.Transaction, len(legs))
	for _, leg := range legs {
		byID[leg.ID] = leg
	}
	var out []Transfer
	for _, leg := range legs {
		if leg.Type != core.Expense {
			continue
		}
		pair := Transfer{From: leg}
		if to, ok := byID[leg.TransferRef]; ok {
			pair.To = to
		}
		out = append(out, pair)
	}
	return out, nil
}

// Recompute overwrites the stored balance of a wallet with the signed sum
// of its transactions and returns the new balance. An empty ownerID skips
// the ownership check, for background jobs.
func (s *Wallets) Recompute(ctx context.Context, walletID, ownerID string) (decimal.Decimal, error) {
	var (
		balance decimal.Decimal
		owner   string
		before  decimal.Decimal
	)
	err := s.store.WithinTx(ctx, func(w storage.Writer) error {
		wallet, err := w.LockWallet(ctx, walletID)
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("wallet %s: %w", walletID, core.ErrWalletNotFound)
		}
		if err != nil {
			return step("lock wallet", err)
		}
		if ownerID != "" && !wallet.OwnedBy(ownerID) {
			return fmt.Errorf("wallet %s: %w", walletID, core.ErrForbidden)
		}
		owner, before = wallet.OwnerID, wallet.Balance

		balance, err = computedBalance(ctx, w, walletID)
		if err != nil {
			return err
		}
		_, err = w.SetWalletBalance(ctx, walletID, balance)
		return step("overwrite balance", err)
	})
	if err != nil {
		s.logFailure(ctx, log.OpRecompute, ownerID, err, []string{walletID})
		return decimal.Zero, err
	}

	if !before.Equal(balance) {
		s.logger.Fields(ctx, slog.LevelInfo, "Wallet balance recomputed", log.NewFields().
			WithOperation(log.OpRecompute).
			WithOwner(owner).
			WithWallet(walletID, balance.Sub(before)).
			With("stored", before.String()).
			With("computed", balance.String()))
	}
	s.publish(ctx, core.NewLedgerEvent(core.EventWalletRecomputed, owner, nil, walletID))
	return balance, nil
}

// DetectDrift reports whether the stored balance of a wallet differs from
// the signed sum of its transactions by more than core.BalanceEpsilon. It
// never writes.
func (s *Wallets) DetectDrift(ctx context.Context, walletID, ownerID string) (Drift, error) {
	wallet, err := s.store.GetWallet(ctx, walletID)
	if errors.Is(err, core.ErrNotFound) {
		return Drift{}, fmt.Errorf("wallet %s: %w", walletID, core.ErrWalletNotFound)
	}
	if err != nil {
		return Drift{}, err
	}
	if ownerID != "" && !wallet.OwnedBy(ownerID) {
		return Drift{}, fmt.Errorf("wallet %s: %w", walletID, core.ErrForbidden)
	}

	computed, err := computedBalance(ctx, s.store, walletID)
	if err != nil {
		return Drift{}, err
	}
	diff := wallet.Balance.Sub(computed)
	return Drift{
		WalletID:   walletID,
		Stored:     wallet.Balance,
		Computed:   computed,
		Difference: diff,
		Drifted:    diff.Abs().GreaterThan(core.BalanceEpsilon),
	}, nil
}

func computedBalance(ctx context.Context, r storage.Reader, walletID string) (decimal.Decimal, error) {
	txs, err := r.QueryTransactions(ctx, storage.TransactionFilter{WalletID: walletID})
	if err != nil {
		return decimal.Zero, step("sum wallet transactions", err)
	}
	return core.SumSigned(txs), nil
}

// legDescription appends the counterpart wallet to desc, shortening desc so
// the result stays within the description limit.
func legDescription(desc, arrow, counterpart string) string {
	suffix := []rune(" " + arrow + " " + counterpart)
	text := []rune(desc)
	if room := core.MaxDescriptionLength - len(suffix); len(text) > room {
		text = []rune(strings.TrimSpace(string(text[:max(room, 0)])))
	}
	full := append(text, suffix...)
	if len(full) > core.MaxDescriptionLength {
		full = full[:core.MaxDescriptionLength]
	}
	return strings.TrimSpace(string(full))
}
