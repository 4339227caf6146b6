package services

import (
	"context"
	"fmt"
	"log/slog"

	"carteira/internal/core"
	"carteira/internal/log"
	"carteira/internal/storage"
)

// Reconciler looks for wallets whose stored balance drifted from their
// transactions. It reports drift and never corrects it.
type Reconciler struct {
	store   storage.Store
	wallets *Wallets
	options
}

func NewReconciler(store storage.Store, wallets *Wallets, opts ...Option) *Reconciler {
	return &Reconciler{store: store, wallets: wallets, options: buildOptions(log.ComponentReconcile, opts)}
}

// ScanResult summarises one reconciliation pass.
type ScanResult struct {
	Checked int     `json:"checked"`
	Drifted []Drift `json:"drifted,omitempty"`
	Failed  int     `json:"failed"`
}

// Scan checks every active wallet. A wallet that cannot be checked is
// logged and skipped.
func (r *Reconciler) Scan(ctx context.Context) (ScanResult, error) {
	wallets, err := r.store.QueryWallets(ctx, storage.WalletFilter{ActiveOnly: true})
	if err != nil {
		return ScanResult{}, fmt.Errorf("load wallets: %w", err)
	}

	var res ScanResult
	for _, w := range wallets {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		drift, err := r.Check(ctx, w)
		if err != nil {
			res.Failed++
			r.logger.ErrorContext(ctx, "Failed to check wallet drift",
				log.FieldWalletID, w.ID,
				log.FieldOwnerID, w.OwnerID,
				log.FieldError, err)
			continue
		}
		res.Checked++
		if drift.Drifted {
			res.Drifted = append(res.Drifted, drift)
		}
	}

	r.logger.InfoContext(ctx, "Drift scan completed",
		"checked", res.Checked,
		"drifted", len(res.Drifted),
		"failed", res.Failed)
	return res, nil
}

// Check compares one wallet and announces drift when found.
func (r *Reconciler) Check(ctx context.Context, w core.Wallet) (Drift, error) {
	drift, err := r.wallets.DetectDrift(ctx, w.ID, "")
	if err != nil {
		return Drift{}, err
	}
	if drift.Drifted {
		r.logger.Fields(ctx, slog.LevelWarn, "Wallet balance drift detected", log.NewFields().
			WithOwner(w.OwnerID).
			WithWallet(w.ID, drift.Difference).
			With("stored", drift.Stored.String()).
			With("computed", drift.Computed.String()))
		r.publish(ctx, core.NewLedgerEvent(core.EventWalletDrift, w.OwnerID, nil, w.ID))
	}
	return drift, nil
}

// CheckIDs checks the given wallets, as named by a ledger event.
func (r *Reconciler) CheckIDs(ctx context.Context, walletIDs []string) ([]Drift, error) {
	var out []Drift
	for _, id := range walletIDs {
		w, err := r.store.GetWallet(ctx, id)
		if err != nil {
			return out, fmt.Errorf("load wallet %s: %w", id, err)
		}
		d, err := r.Check(ctx, w)
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}
