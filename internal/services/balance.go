package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// walletDeltas accumulates the balance change of each wallet touched by a
// unit of work, so every wallet is written once.
type walletDeltas map[string]decimal.Decimal

func (d walletDeltas) add(walletID string, amount decimal.Decimal) {
	if walletID == "" {
		return
	}
	d[walletID] = d[walletID].Add(amount)
}

func (d walletDeltas) ids() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// apply writes the new balance of every wallet, locking in id order.
// Wallets whose delta nets to zero are not written.
func (d walletDeltas) apply(ctx context.Context, w storage.Writer) error {
	for _, id := range d.ids() {
		delta := d[id]
		if delta.IsZero() {
			continue
		}
		wallet, err := w.LockWallet(ctx, id)
		if err != nil {
			return step("lock wallet "+id, err)
		}
		n, err := w.SetWalletBalance(ctx, id, wallet.Balance.Add(delta))
		if err != nil {
			return step("update balance of "+id, err)
		}
		if n == 0 {
			return step("update balance of "+id, fmt.Errorf("wallet %s: %w", id, core.ErrWalletNotFound))
		}
	}
	return nil
}

// lockOwnedWallet locks walletID and checks it belongs to ownerID. Missing,
// foreign and, when requireActive is set, deactivated wallets all report
// ErrWalletNotFound.
func lockOwnedWallet(ctx context.Context, w storage.Writer, ownerID, walletID string, requireActive bool) (core.Wallet, error) {
	wallet, err := w.LockWallet(ctx, walletID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, core.ErrWalletNotFound)
	}
	if err != nil {
		return core.Wallet{}, step("lock wallet "+walletID, err)
	}
	if !wallet.OwnedBy(ownerID) || (requireActive && !wallet.Active) {
		return core.Wallet{}, fmt.Errorf("wallet %s: %w", walletID, core.ErrWalletNotFound)
	}
	return wallet, nil
}

// checkWallets locks every referenced wallet in id order before any write.
func checkWallets(ctx context.Context, w storage.Writer, ownerID string, walletIDs []string, requireActive bool) error {
	uniq := map[string]bool{}
	for _, id := range walletIDs {
		if id != "" {
			uniq[id] = true
		}
	}
	ids := make([]string, 0, len(uniq))
	for id := range uniq {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, err := lockOwnedWallet(ctx, w, ownerID, id, requireActive); err != nil {
			return err
		}
	}
	return nil
}

// stepError records which sub-step of a unit of work failed.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func step(name string, err error) error {
	if err == nil {
		return nil
	}
	var se *stepError
	if errors.As(err, &se) {
		return err
	}
	return &stepError{step: name, err: err}
}

// logFailure logs storage failures of a unit of work with the ids involved
// so the affected wallets can be recomputed. Domain errors are left to the
// caller.
func (o options) logFailure(ctx context.Context, op, ownerID string, err error, walletIDs []string, txIDs ...string) {
	if err == nil || isDomainError(err) {
		return
	}
	f := log.NewFields().
		WithOperation(op).
		WithOwner(ownerID).
		WithError(err).
		With("wallet_ids", walletIDs).
		With("transaction_ids", txIDs)
	var se *stepError
	if errors.As(err, &se) {
		f = f.WithStep(se.step)
	}
	o.logger.Fields(ctx, slog.LevelError, "Ledger unit of work failed", f)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		core.ErrValidation, core.ErrNotFound, core.ErrForbidden, core.ErrInsufficientFunds,
		core.ErrSameWalletTransfer, core.ErrWalletNotFound, core.ErrUnknownFrequency, core.ErrDuplicateName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
